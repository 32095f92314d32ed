package models

// Rule is one ordered entry of the routing table: a label-match predicate
// (AND over every key in Match) plus the channel ids it contributes when
// it matches. A Default rule matches unconditionally and is typically
// placed last as a catch-all.
type Rule struct {
	Match   map[string]string `yaml:"match"`
	Default bool              `yaml:"default"`
	SendTo  []string          `yaml:"send_to"`
}
