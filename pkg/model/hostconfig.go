package model

// Note formats the host can prefer.
const (
	FormatMarkdown = "markdown"
	FormatOrg      = "org"
)

// HostConfig is the read-only snapshot of host settings used for one render.
type HostConfig struct {
	PreferredFormat string `json:"preferredFormat" yaml:"preferred_format" koanf:"preferred_format"`
	DateFormat      string `json:"dateFormat" yaml:"date_format" koanf:"date_format"`
	AssetPrefix     string `json:"assetPrefix" yaml:"asset_prefix" koanf:"asset_prefix"`
	GraphName       string `json:"graphName" yaml:"graph_name" koanf:"graph_name"`
	EnableEquations bool   `json:"enableEquations" yaml:"enable_equations" koanf:"enable_equations"`
}

// IsOrg reports whether block text is written in org syntax.
func (c HostConfig) IsOrg() bool {
	return c.PreferredFormat == FormatOrg
}
