package main

import (
	"os"
	"strconv"

	tw "github.com/olekukonko/tablewriter"

	"github.com/vulnix/vulnix/store"
	"github.com/vulnix/vulnix/utils"
)

// RunHistory lists past sessions from the history store.
func RunHistory(cfg utils.Config) error {
	st, err := store.Open(cfg.StorePath)
	if err != nil {
		return err
	}
	defer st.Close()

	rows, err := st.ListSessions(cfg.HistoryLimit)
	if err != nil {
		return err
	}

	table := tw.NewWriter(os.Stdout)
	table.SetHeader([]string{"Session", "Status", "Host", "Target", "Mode", "Started", "Total", "Critical", "High"})
	table.SetHeaderLine(true)
	table.SetBorder(true)
	for _, row := range rows {
		table.Append([]string{
			row.ID, row.Status, row.Host, row.Target, row.ScanMode, row.StartedAt,
			strconv.Itoa(row.Total), strconv.Itoa(row.Critical), strconv.Itoa(row.High),
		})
	}
	table.Render()
	return nil
}
