package dashboard

import (
	"bytes"
	"html/template"
	"net/http"
	"strings"

	"github.com/tkingovr/postguard/api"
)

var funcMap = template.FuncMap{
	"upper":        strings.ToUpper,
	"verdictClass": func(v api.Verdict) string { return verdictColor(v) },
	"verdicts": func() []string {
		return []string{string(api.VerdictAllow), string(api.VerdictDeny), string(api.VerdictAsk), string(api.VerdictLog)}
	},
}

var pageTmpls = map[string]*template.Template{
	"overview": template.Must(template.New("overview").Funcs(funcMap).Parse(navHTML + overviewHTML)),
	"audit":    template.Must(template.New("audit").Funcs(funcMap).Parse(navHTML + auditHTML)),
	"approval": template.Must(template.New("approval").Funcs(funcMap).Parse(navHTML + approvalHTML)),
	"catalog":  template.Must(template.New("catalog").Funcs(funcMap).Parse(navHTML + catalogHTML)),
	"policy":   template.Must(template.New("policy").Funcs(funcMap).Parse(navHTML + policyHTML)),
}

func renderPage(w http.ResponseWriter, name string, data map[string]any) {
	tmpl, ok := pageTmpls[name]
	if !ok {
		http.Error(w, "unknown page: "+name, http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		http.Error(w, "template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

const navHTML = `{{define "nav"}}
<nav class="bg-gray-900 border-b border-gray-700 px-6 py-4">
    <div class="flex items-center justify-between max-w-7xl mx-auto">
        <div class="flex items-center space-x-2">
            <span class="text-xl font-bold text-white">postguard</span>
            <span class="text-xs bg-gray-700 text-gray-300 px-2 py-1 rounded">Dashboard</span>
        </div>
        <div class="flex space-x-4">
            <a href="/" class="px-3 py-2 rounded hover:bg-gray-800 {{if eq .Page "overview"}}bg-gray-800 text-white{{else}}text-gray-400{{end}}">Overview</a>
            <a href="/audit" class="px-3 py-2 rounded hover:bg-gray-800 {{if eq .Page "audit"}}bg-gray-800 text-white{{else}}text-gray-400{{end}}">Audit Log</a>
            <a href="/approval" class="px-3 py-2 rounded hover:bg-gray-800 {{if eq .Page "approval"}}bg-gray-800 text-white{{else}}text-gray-400{{end}}">Approvals</a>
            <a href="/catalog" class="px-3 py-2 rounded hover:bg-gray-800 {{if eq .Page "catalog"}}bg-gray-800 text-white{{else}}text-gray-400{{end}}">Catalog</a>
            <a href="/policy" class="px-3 py-2 rounded hover:bg-gray-800 {{if eq .Page "policy"}}bg-gray-800 text-white{{else}}text-gray-400{{end}}">Policy</a>
        </div>
    </div>
</nav>
{{end}}`

const headHTML = `<!DOCTYPE html>
<html lang="en" class="dark">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>postguard dashboard</title>
    <script src="https://cdn.tailwindcss.com"></script>
    <script src="https://unpkg.com/htmx.org@2.0.4"></script>
    <script src="https://unpkg.com/htmx-ext-sse@2.2.2/sse.js"></script>
    <style>body { background-color: #0f172a; color: #e2e8f0; }</style>
</head>
<body class="min-h-screen">
{{template "nav" .}}
<main class="max-w-7xl mx-auto px-6 py-8">`

const footHTML = `</main>
</body>
</html>`

const overviewHTML = headHTML + `
<h1 class="text-2xl font-bold mb-6">Overview</h1>
<div class="grid grid-cols-1 md:grid-cols-4 gap-6 mb-8">
    <div class="bg-gray-900 border border-gray-700 rounded-lg p-6">
        <div class="text-gray-400 text-sm mb-1">Posts Gated</div>
        <div class="text-3xl font-bold text-white">{{.Stats.TotalPosts}}</div>
    </div>
    <div class="bg-gray-900 border border-green-900 rounded-lg p-6">
        <div class="text-green-400 text-sm mb-1">Published</div>
        <div class="text-3xl font-bold text-green-300">{{.Stats.AllowCount}}</div>
    </div>
    <div class="bg-gray-900 border border-red-900 rounded-lg p-6">
        <div class="text-red-400 text-sm mb-1">Blocked</div>
        <div class="text-3xl font-bold text-red-300">{{.Stats.DenyCount}}</div>
    </div>
    <div class="bg-gray-900 border border-yellow-900 rounded-lg p-6">
        <div class="text-yellow-400 text-sm mb-1">Held for Review</div>
        <div class="text-3xl font-bold text-yellow-300">{{.Stats.AskCount}}</div>
    </div>
</div>
<div class="grid grid-cols-1 md:grid-cols-2 gap-6">
    <div class="bg-gray-900 border border-gray-700 rounded-lg p-6">
        <h2 class="text-lg font-bold mb-4">Blocked by Category</h2>
        {{range .ByCategory}}
        <div class="flex justify-between py-1 border-b border-gray-800">
            <a href="/audit?category={{.Name}}" class="text-gray-300 font-mono text-sm hover:text-white">{{.Name}}</a>
            <span class="text-gray-400">{{.Count}}</span>
        </div>
        {{end}}
    </div>
    <div class="bg-gray-900 border border-gray-700 rounded-lg p-6">
        <h2 class="text-lg font-bold mb-4">Most Active Agents</h2>
        {{range .TopAgents}}
        <div class="flex justify-between py-1 border-b border-gray-800">
            <a href="/audit?agent={{.Name}}" class="text-gray-300 font-mono text-sm hover:text-white">{{.Name}}</a>
            <span class="text-gray-400">{{.Count}}</span>
        </div>
        {{else}}<p class="text-gray-500">No data yet</p>{{end}}
    </div>
</div>
` + footHTML

const auditHTML = headHTML + `
<div class="flex justify-between items-center mb-6">
    <h1 class="text-2xl font-bold">Audit Log</h1>
    <span class="text-sm text-gray-400">Live updates via SSE</span>
</div>
<form method="get" action="/audit" class="flex space-x-2 mb-4 text-sm">
    <input name="agent" value="{{.Filter.Agent}}" placeholder="agent" class="bg-gray-800 border border-gray-700 rounded px-2 py-1">
    <select name="category" class="bg-gray-800 border border-gray-700 rounded px-2 py-1">
        <option value="">any category</option>
        {{$selected := .Filter.Category}}
        {{range .Categories}}<option value="{{.}}" {{if eq . $selected}}selected{{end}}>{{.}}</option>{{end}}
    </select>
    <select name="verdict" class="bg-gray-800 border border-gray-700 rounded px-2 py-1">
        <option value="">any verdict</option>
        {{$verdict := printf "%s" .Filter.Verdict}}
        {{range $v := verdicts}}<option value="{{$v}}" {{if eq $v $verdict}}selected{{end}}>{{$v}}</option>{{end}}
    </select>
    <button type="submit" class="px-3 py-1 bg-gray-700 hover:bg-gray-600 rounded">Filter</button>
</form>
<div class="bg-gray-900 border border-gray-700 rounded-lg overflow-hidden">
    <table class="w-full text-sm text-left">
        <thead class="bg-gray-800 text-gray-400 uppercase text-xs">
            <tr>
                <th class="px-4 py-3">Time</th>
                <th class="px-4 py-3">Agent</th>
                <th class="px-4 py-3">Preview</th>
                <th class="px-4 py-3">Verdict</th>
                <th class="px-4 py-3">Category</th>
                <th class="px-4 py-3">Rule</th>
            </tr>
        </thead>
        <tbody id="audit-table"
               hx-ext="sse"
               sse-connect="/audit/stream"
               sse-swap="audit"
               hx-swap="afterbegin">
            {{range .Records}}
            <tr class="border-b border-gray-700 hover:bg-gray-800">
                <td class="px-4 py-2 text-gray-400 text-xs">{{.Timestamp.Format "15:04:05"}}</td>
                <td class="px-4 py-2">{{.Agent}}</td>
                <td class="px-4 py-2 font-mono text-xs max-w-md truncate" title="{{.Message}}">{{.Preview}}</td>
                <td class="px-4 py-2"><span class="px-2 py-1 rounded text-xs font-bold {{verdictClass .Verdict}}">{{upper (printf "%s" .Verdict)}}</span></td>
                <td class="px-4 py-2">{{.Category}}</td>
                <td class="px-4 py-2 text-gray-400 text-xs">{{.Rule}}</td>
            </tr>
            {{end}}
        </tbody>
    </table>
</div>
` + footHTML

const approvalHTML = headHTML + `
<h1 class="text-2xl font-bold mb-6">Review Queue</h1>
{{if .Pending}}
<div class="space-y-4 mb-8">
    {{range .Pending}}
    <div class="bg-gray-900 border border-yellow-700 rounded-lg p-6">
        <div class="flex justify-between items-start">
            <div>
                <div class="text-yellow-400 text-xs font-bold mb-2">HELD FOR REVIEW</div>
                <div class="text-white font-bold">{{if .Agent}}{{.Agent}}{{else}}unknown agent{{end}}</div>
                <div class="text-gray-400 text-sm mt-1">{{.Message}}</div>
                <div class="text-gray-500 text-xs mt-2">Rule: {{.Rule}} | Created: {{.CreatedAt.Format "15:04:05"}}</div>
                <div class="mt-2 bg-gray-800 rounded p-2 font-mono text-xs text-gray-300 whitespace-pre-wrap">{{.Preview}}</div>
            </div>
            <div class="flex space-x-2">
                <button hx-post="/approval/{{.ID}}/approve" hx-target="body"
                        class="px-4 py-2 bg-green-700 hover:bg-green-600 text-white rounded text-sm font-bold">Publish</button>
                <button hx-post="/approval/{{.ID}}/deny" hx-target="body"
                        class="px-4 py-2 bg-red-700 hover:bg-red-600 text-white rounded text-sm font-bold">Reject</button>
            </div>
        </div>
    </div>
    {{end}}
</div>
{{else}}
<div class="bg-gray-900 border border-gray-700 rounded-lg p-8 text-center text-gray-400 mb-8">
    No posts awaiting review
</div>
{{end}}
{{if .All}}
<h2 class="text-lg font-bold mb-4">History</h2>
<div class="bg-gray-900 border border-gray-700 rounded-lg overflow-hidden">
    <table class="w-full text-sm text-left">
        <tbody>
            {{range .All}}
            <tr class="border-b border-gray-700">
                <td class="px-4 py-2 text-gray-400 text-xs">{{.CreatedAt.Format "15:04:05"}}</td>
                <td class="px-4 py-2">{{.Agent}}</td>
                <td class="px-4 py-2 text-xs">{{.Rule}}</td>
                <td class="px-4 py-2 text-xs">{{.Status}}</td>
            </tr>
            {{end}}
        </tbody>
    </table>
</div>
{{end}}
` + footHTML

const catalogHTML = headHTML + `
<h1 class="text-2xl font-bold mb-2">Rule Catalog</h1>
<p class="text-gray-400 text-sm mb-6">{{.RuleCount}} rules, evaluated top to bottom; the first match blocks the post.</p>
{{range .Groups}}
<div class="bg-gray-900 border border-gray-700 rounded-lg p-6 mb-4">
    <h2 class="text-lg font-bold font-mono mb-3">{{.Category}}</h2>
    {{range .Rules}}
    <div class="flex justify-between py-1 border-b border-gray-800 text-sm">
        <span class="text-gray-300 font-mono">{{.Name}}</span>
        <span class="text-gray-500">{{.Reason}}</span>
    </div>
    {{end}}
</div>
{{end}}
<div class="bg-gray-900 border border-gray-700 rounded-lg p-6">
    <h2 class="text-lg font-bold mb-3">Known Contracts</h2>
    {{range .Contracts}}
    <div class="font-mono text-xs text-gray-300 py-1">{{.}}</div>
    {{else}}<p class="text-gray-500">Allowlist is empty; every cast send target is treated as unknown.</p>{{end}}
</div>
` + footHTML

const policyHTML = headHTML + `
<h1 class="text-2xl font-bold mb-6">Active Policy</h1>
<div class="bg-gray-900 border border-gray-700 rounded-lg p-6">
    {{if .PolicyYAML}}
    <pre class="font-mono text-sm text-gray-300 whitespace-pre-wrap">{{.PolicyYAML}}</pre>
    {{else}}<p class="text-gray-500">Running with built-in defaults; no policy file loaded.</p>{{end}}
</div>
` + footHTML
