package report

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// HTMLConfig contains configuration for HTML report generation.
type HTMLConfig struct {
	OutputPath  string // Path to write the HTML file
	EmbedAssets bool   // Embed screenshots as base64 (makes file larger but portable)
	Title       string // Report title (default: "Todo Test Report")
}

// GenerateHTML generates an HTML report from the report directory.
func GenerateHTML(reportDir string, cfg HTMLConfig) error {
	r, err := ReadReport(reportDir)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	if cfg.Title == "" {
		cfg.Title = "Todo Test Report"
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = filepath.Join(reportDir, HTMLFile)
	}

	data := buildHTMLData(r, reportDir, cfg)

	html, err := renderHTML(data)
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}

	if err := os.WriteFile(cfg.OutputPath, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write html: %w", err)
	}
	return nil
}

// HTMLData contains all data needed for the HTML template.
type HTMLData struct {
	Title         string
	GeneratedAt   string
	Report        *Report
	TotalDuration string
	PassRate      float64
	Commands      []CommandHTMLData
	Screenshots   []ScreenshotHTMLData
}

// CommandHTMLData contains step data formatted for HTML.
type CommandHTMLData struct {
	Command
	StatusClass string
	DurationStr string
	Screenshot  template.URL // base64 or path
}

// ScreenshotHTMLData is one named phase screenshot.
type ScreenshotHTMLData struct {
	Name string
	Src  template.URL
}

func buildHTMLData(r *Report, reportDir string, cfg HTMLConfig) HTMLData {
	src := func(rel string) template.URL {
		if cfg.EmbedAssets {
			return template.URL(loadAsBase64(filepath.Join(reportDir, rel))) //#nosec G203 -- data URL built from our own file
		}
		return template.URL(filepath.ToSlash(rel)) //#nosec G203 -- relative path written by Writer
	}

	cmds := make([]CommandHTMLData, len(r.Commands))
	for i, c := range r.Commands {
		cmd := CommandHTMLData{
			Command:     c,
			StatusClass: string(c.Status),
			DurationStr: formatDuration(c.Duration),
		}
		if c.Artifacts.Screenshot != "" {
			cmd.Screenshot = src(c.Artifacts.Screenshot)
		}
		cmds[i] = cmd
	}

	shots := make([]ScreenshotHTMLData, len(r.Screenshots))
	for i, rel := range r.Screenshots {
		name := strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
		shots[i] = ScreenshotHTMLData{Name: name, Src: src(rel)}
	}

	var passRate float64
	if r.Summary.Total > 0 {
		passRate = float64(r.Summary.Passed+r.Summary.Warned) / float64(r.Summary.Total) * 100
	}

	return HTMLData{
		Title:         cfg.Title,
		GeneratedAt:   time.Now().Format("2006-01-02 15:04:05"),
		Report:        r,
		TotalDuration: formatDuration(r.Duration),
		PassRate:      passRate,
		Commands:      cmds,
		Screenshots:   shots,
	}
}

func formatDuration(ms *int64) string {
	if ms == nil {
		return "-"
	}
	d := time.Duration(*ms) * time.Millisecond
	if d < time.Second {
		return fmt.Sprintf("%dms", *ms)
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}

func loadAsBase64(path string) string {
	data, err := os.ReadFile(path) //#nosec G304 -- artifact inside the run directory
	if err != nil {
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}

func renderHTML(data HTMLData) (string, error) {
	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        :root {
            --bg-primary: #ffffff;
            --bg-secondary: #f9fafb;
            --text-primary: #000000;
            --text-muted: rgb(107, 114, 128);
            --border-color: #e5e7eb;
            --passed: #22c55e;
            --failed: #ef4444;
            --skipped: #eab308;
            --warned: #f97316;
            --pending: #6b7280;
        }
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: var(--bg-primary);
            color: var(--text-primary);
            line-height: 1.5;
        }
        .header { background: var(--bg-secondary); border-bottom: 1px solid var(--border-color); padding: 16px 24px; }
        .header-title { font-size: 18px; font-weight: 600; }
        .header-sub { font-size: 12px; color: var(--text-muted); }
        .summary { display: flex; gap: 24px; margin-top: 12px; font-size: 13px; }
        .content { padding: 16px 24px; }
        table { width: 100%; border-collapse: collapse; font-size: 13px; }
        th, td { text-align: left; padding: 6px 8px; border-bottom: 1px solid var(--border-color); vertical-align: top; }
        .status-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-right: 6px; }
        .passed .status-dot { background: var(--passed); }
        .failed .status-dot { background: var(--failed); }
        .skipped .status-dot { background: var(--skipped); }
        .warned .status-dot { background: var(--warned); }
        .pending .status-dot, .running .status-dot { background: var(--pending); }
        .error { color: var(--failed); }
        .gallery { display: grid; grid-template-columns: repeat(auto-fill, minmax(240px, 1fr)); gap: 12px; margin-top: 12px; }
        .gallery figure { border: 1px solid var(--border-color); padding: 4px; }
        .gallery img, td img { max-width: 100%; }
        .gallery figcaption { font-size: 12px; color: var(--text-muted); }
        h2 { font-size: 15px; margin: 24px 0 8px; }
    </style>
</head>
<body>
    <div class="header">
        <div class="header-title">{{.Title}}: {{.Report.Name}}</div>
        <div class="header-sub">{{.Report.URL}} &middot; run {{.Report.RunID}} &middot; {{.Report.Runner.Driver}} &middot; generated {{.GeneratedAt}}</div>
        <div class="summary">
            <span class="{{.Report.Status}}"><span class="status-dot"></span>{{.Report.Status}}</span>
            <span>{{.Report.Summary.Passed}} passed</span>
            <span>{{.Report.Summary.Failed}} failed</span>
            {{if .Report.Summary.Warned}}<span>{{.Report.Summary.Warned}} warned</span>{{end}}
            {{if .Report.Summary.Skipped}}<span>{{.Report.Summary.Skipped}} skipped</span>{{end}}
            <span>{{printf "%.0f" .PassRate}}% pass rate</span>
            <span>{{.TotalDuration}}</span>
        </div>
        <div class="summary">
            <span>added {{.Report.Stats.Added}}</span>
            <span>completed {{.Report.Stats.Completed}}</span>
            <span>deleted {{.Report.Stats.Deleted}}</span>
            <span>updated {{.Report.Stats.Updated}}</span>
            <span>errors {{.Report.Stats.Errors}}</span>
        </div>
        {{with .Report.Error}}<div class="error">{{.}}</div>{{end}}
    </div>
    <div class="content">
        <table>
            <thead><tr><th>#</th><th>Step</th><th>Status</th><th>Duration</th><th>Details</th></tr></thead>
            <tbody>
            {{range .Commands}}
            <tr class="{{.StatusClass}}">
                <td>{{.Index}}</td>
                <td>{{if .Label}}{{.Label}}{{else}}{{.YAML}}{{end}}</td>
                <td><span class="status-dot"></span>{{.Status}}</td>
                <td>{{.DurationStr}}</td>
                <td>
                    {{if .Message}}<div>{{.Message}}</div>{{end}}
                    {{with .Error}}<div class="error">{{.Type}}: {{.Message}}</div>{{end}}
                    {{if .Screenshot}}<img src="{{.Screenshot}}" alt="failure screenshot">{{end}}
                </td>
            </tr>
            {{end}}
            </tbody>
        </table>
        {{if .Screenshots}}
        <h2>Screenshots</h2>
        <div class="gallery">
            {{range .Screenshots}}
            <figure><img src="{{.Src}}" alt="{{.Name}}"><figcaption>{{.Name}}</figcaption></figure>
            {{end}}
        </div>
        {{end}}
    </div>
</body>
</html>
`
