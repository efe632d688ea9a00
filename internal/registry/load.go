package registry

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ─── FILE SHAPE ───────────────────────────────────────────────────────────────

// fileConfig mirrors clients.yaml:
//
//	clients:
//	  "1":
//	    name: Client One
//	    emailTemplate: client1
//	    resend:
//	      apiKey: ${CLIENT_1_RESEND_API_KEY}
//	      from: noreply@client1.com
//	      to: [admin@client1.com]
//	      template:
//	        subject: "{{awb}} - {{courier_name}} - Shipment Delivered"
//	        includeHtml: true
type fileConfig struct {
	Clients map[string]fileClient `yaml:"clients"`
}

type fileClient struct {
	Name          string     `yaml:"name"`
	EmailTemplate string     `yaml:"emailTemplate"`
	Resend        fileResend `yaml:"resend"`
}

type fileResend struct {
	APIKey   string   `yaml:"apiKey"`
	From     string   `yaml:"from"`
	To       []string `yaml:"to"`
	Template struct {
		Subject     string `yaml:"subject"`
		IncludeHTML *bool  `yaml:"includeHtml"`
	} `yaml:"template"`
}

// ─── LOADING ──────────────────────────────────────────────────────────────────

// Load builds a Registry from the YAML file at path. ${VAR} references in the
// file are expanded with getenv, then the per-client overrides
// CLIENT_<id>_RESEND_API_KEY, CLIENT_<id>_EMAIL_FROM and CLIENT_<id>_EMAIL_TO
// (comma separated) are applied. An empty path loads the built-in clients.
func Load(path string, getenv func(string) string) (*Registry, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if path == "" {
		return Default(getenv)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}
	return Parse(raw, getenv)
}

// envRef matches ${NAME}. A bare $ is literal: keys and subjects may contain one.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandEnv(raw []byte, getenv func(string) string) []byte {
	return envRef.ReplaceAllFunc(raw, func(ref []byte) []byte {
		return []byte(getenv(string(ref[2 : len(ref)-1])))
	})
}

// Parse is Load for an in-memory document.
func Parse(raw []byte, getenv func(string) string) (*Registry, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	dec := yaml.NewDecoder(bytes.NewReader(expandEnv(raw, getenv)))
	dec.KnownFields(true)

	var fc fileConfig
	if err := dec.Decode(&fc); err != nil {
		return nil, fmt.Errorf("registry: decode: %w", err)
	}
	if len(fc.Clients) == 0 {
		return nil, fmt.Errorf("registry: no clients configured")
	}

	profiles := make([]Profile, 0, len(fc.Clients))
	for id, c := range fc.Clients {
		omitHTML := false
		if c.Resend.Template.IncludeHTML != nil {
			omitHTML = !*c.Resend.Template.IncludeHTML
		}
		p := Profile{
			ID:       id,
			Name:     c.Name,
			Template: c.EmailTemplate,
			Sender: Sender{
				APIKey:   c.Resend.APIKey,
				From:     c.Resend.From,
				To:       c.Resend.To,
				Subject:  c.Resend.Template.Subject,
				OmitHTML: omitHTML,
			},
		}
		profiles = append(profiles, applyEnv(p, getenv))
	}
	return New(profiles...)
}

// Default returns the two built-in clients, with env overrides applied.
func Default(getenv func(string) string) (*Registry, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	return New(
		applyEnv(Profile{
			ID:       "1",
			Name:     "Client One",
			Template: "client1",
			Sender: Sender{
				From:    "noreply@client1.com",
				To:      []string{"admin@client1.com"},
				Subject: "{{awb}} - {{courier_name}} - Shipment Delivered - ShippingDL",
			},
		}, getenv),
		applyEnv(Profile{
			ID:       "2",
			Name:     "Client Two",
			Template: "client2",
			Sender: Sender{
				From:    "notifications@client2.com",
				To:      []string{"support@client2.com"},
				Subject: "Delivery Notification - Client 2 - AWB: {{awb}}",
			},
		}, getenv),
	)
}

func applyEnv(p Profile, getenv func(string) string) Profile {
	prefix := "CLIENT_" + p.ID + "_"
	if v := getenv(prefix + "RESEND_API_KEY"); v != "" {
		p.Sender.APIKey = v
	}
	if v := getenv(prefix + "EMAIL_FROM"); v != "" {
		p.Sender.From = v
	}
	if v := getenv(prefix + "EMAIL_TO"); v != "" {
		var to []string
		for _, addr := range strings.Split(v, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				to = append(to, addr)
			}
		}
		if len(to) > 0 {
			p.Sender.To = to
		}
	}
	return p
}
