package provider

import (
	"regexp"
	"strings"

	"github.com/altafino/invoice-analyzer/internal/models"
)

// Providers disagree on whether sender identity arrives pre-structured or as
// one combined string. ParseSender reconciles the combined forms
// "Name <addr>" (RFC style) and "Name (addr)" (Graph display style) into the
// normalized shape. When neither pattern matches, the raw string becomes the
// display name and the address stays empty.
var (
	angleSenderRe = regexp.MustCompile(`^(.*?)\s*<([^<>]+)>\s*$`)
	parenSenderRe = regexp.MustCompile(`^(.*?)\s*\(([^()]+)\)\s*$`)
)

// ParseSender normalizes a combined sender string.
func ParseSender(raw string) models.Sender {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.Sender{}
	}

	for _, re := range []*regexp.Regexp{angleSenderRe, parenSenderRe} {
		if m := re.FindStringSubmatch(raw); m != nil {
			name := strings.Trim(strings.TrimSpace(m[1]), `"`)
			addr := strings.TrimSpace(m[2])
			if name == "" {
				name = addr
			}
			return models.Sender{Name: name, Address: addr}
		}
	}

	return models.Sender{Name: raw}
}
