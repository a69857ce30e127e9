package trivy

import "time"

// Document is the subset of the trivy JSON report consumed here.
type Document struct {
	SchemaVersion int       `json:"SchemaVersion"`
	CreatedAt     time.Time `json:"CreatedAt"`
	ArtifactName  string    `json:"ArtifactName"`
	ArtifactType  string    `json:"ArtifactType"`
	Metadata      Metadata  `json:"Metadata"`
	Results       []Result  `json:"Results"`
}

type Metadata struct {
	OS          *OS          `json:"OS,omitempty"`
	ImageConfig *ImageConfig `json:"ImageConfig,omitempty"`
}

type OS struct {
	Family string `json:"Family"`
	Name   string `json:"Name"`
	EOSL   bool   `json:"EOSL,omitempty"`
}

type ImageConfig struct {
	Architecture string `json:"architecture,omitempty"`
}

type Result struct {
	Target          string          `json:"Target"`
	Class           string          `json:"Class,omitempty"`
	Type            string          `json:"Type,omitempty"`
	Vulnerabilities []Vulnerability `json:"Vulnerabilities,omitempty"`
}

type Vulnerability struct {
	VulnerabilityID  string          `json:"VulnerabilityID"`
	PkgName          string          `json:"PkgName"`
	InstalledVersion string          `json:"InstalledVersion"`
	FixedVersion     string          `json:"FixedVersion,omitempty"`
	Status           string          `json:"Status,omitempty"`
	Severity         string          `json:"Severity"`
	Title            string          `json:"Title,omitempty"`
	Description      string          `json:"Description,omitempty"`
	PrimaryURL       string          `json:"PrimaryURL,omitempty"`
	CVSS             map[string]CVSS `json:"CVSS,omitempty"`
}

type CVSS struct {
	V2Score float64 `json:"V2Score,omitempty"`
	V3Score float64 `json:"V3Score,omitempty"`
}
