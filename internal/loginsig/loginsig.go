// Package loginsig classifies a probe's final URL, response headers and
// body snippet against a fixed catalogue of login-surface products
// (spec.md §4.4). Rules are evaluated in order; the first match wins.
// Grounded on the teacher's internal/provider.ProbeOne Cloudflare-detection
// rule: a definitive content signal, or a header match, each with named
// false-positive carve-outs, repeated once per product family here.
package loginsig

import "strings"

// Result is the heuristic's verdict.
type Result struct {
	LoginDetected bool
	LoginType     string // "" when LoginDetected is false
}

// rule is one product-family detector. Rules run in catalogue order;
// Classify returns on the first rule that matches.
type rule struct {
	name  string
	match func(finalURL, headerBlob, body string) bool
}

// Classify runs the nine-rule catalogue over (finalURL, headerBlob,
// bodySnippet) in the documented order. headerBlob is the concatenated
// "Key: v1, v2\n" lines for both response and content headers. All inputs
// are matched case-insensitively except where a rule says otherwise.
func Classify(finalURL, headerBlob, body string) Result {
	u := strings.ToLower(finalURL)
	h := strings.ToLower(headerBlob)
	b := strings.ToLower(body)

	for _, r := range catalogue {
		if r.match(u, h, b) {
			return Result{LoginDetected: true, LoginType: r.name}
		}
	}
	// 9. Generic fallback: password input wins over a looser login-page hint.
	if t := genericType(b); t != "" {
		return Result{LoginDetected: true, LoginType: t}
	}
	return Result{}
}

var catalogue = []rule{
	{
		// 1. OWA (Outlook Web App).
		name: "OWA",
		match: func(u, h, b string) bool {
			if strings.Contains(u, "/owa/") || strings.Contains(u, "errorfe.aspx") {
				return true
			}
			return strings.Contains(b, "outlook web app") || strings.Contains(b, "owa/auth") || strings.Contains(b, "outlook")
		},
	},
	{
		// 2. Rocket.Chat.
		name: "RocketChat",
		match: func(u, h, b string) bool {
			strong := strings.Contains(b, "rocket.chat") || strings.Contains(b, "__meteor_runtime_config__") ||
				strings.Contains(b, "meteor") || strings.Contains(b, "rc-root") || strings.Contains(b, "rocketchat")
			if !strong {
				return false
			}
			return strings.Contains(u, "/home") || strings.Contains(u, "/login")
		},
	},
	{
		// 3. ERPNext / Frappe.
		name: "ERPNext",
		match: func(u, h, b string) bool {
			strong := strings.Contains(b, "erpnext") || strings.Contains(b, "frappe") ||
				strings.Contains(b, "frappe.boot") || strings.Contains(b, "frappe.csrf_token") ||
				strings.Contains(b, "/api/method/frappe.")
			if !strong {
				return false
			}
			urlHint := strings.Contains(u, "/login") || strings.Contains(u, "/desk")
			headerHint := strings.Contains(h, "x-frappe-") || strings.Contains(h, "sid=")
			return urlHint || headerHint
		},
	},
	{
		// 4. Nextcloud.
		name: "Nextcloud",
		match: func(u, h, b string) bool {
			return strings.Contains(b, "nextcloud") || strings.Contains(b, "body-login") || strings.Contains(b, "nc-login")
		},
	},
	{
		// 5. Proxmox PMG / PBS / PVE.
		name: "Proxmox",
		match: func(u, h, b string) bool {
			urlHint := strings.Contains(u, "/pmg") || strings.Contains(u, "/pbs") || strings.Contains(u, "/pve2/") ||
				strings.Contains(u, ":8006") || strings.Contains(u, ":8007")
			if !urlHint {
				return false
			}
			return strings.Contains(b, "proxmox") || strings.Contains(b, "pmg") || strings.Contains(b, "pbs") || strings.Contains(b, "pve")
		},
	},
	{
		// 6. Zabbix.
		name: "Zabbix",
		match: func(u, h, b string) bool {
			if !strings.Contains(b, "zabbix") {
				return false
			}
			return strings.Contains(b, `type="password"`)
		},
	},
	{
		// 7. OPNsense.
		name: "OPNsense",
		match: func(u, h, b string) bool {
			if !strings.Contains(b, "opnsense") {
				return false
			}
			return strings.Contains(b, `type="password"`)
		},
	},
	{
		// 8. CipherMail.
		name: "CipherMail",
		match: func(u, h, b string) bool {
			if !strings.Contains(b, "ciphermail") && !strings.Contains(b, "djigzo") {
				return false
			}
			return strings.Contains(b, `type="password"`)
		},
	},
}

func genericType(body string) string {
	if strings.Contains(body, `type="password"`) {
		return "PasswordForm"
	}
	if strings.Contains(body, "login") &&
		(strings.Contains(body, "<form") || strings.Contains(body, "username") ||
			strings.Contains(body, "email") || strings.Contains(body, "sign in")) {
		return "LoginPage"
	}
	return ""
}
