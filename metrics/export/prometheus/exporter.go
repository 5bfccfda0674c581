package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/tenantauth"
	"github.com/MrEthical07/tenantauth/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() tenantauth.MetricsSnapshot
	AuditDropped() uint64
}

// PrometheusExporter renders engine metrics in Prometheus text exposition format.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter reads from engine on every scrape.
func NewPrometheusExporter(engine *tenantauth.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves Render as text/plain.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the exposition text, or "" while the engine records nothing.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(4096)

	for _, f := range internaldefs.Families {
		header(&b, f.Name, f.Help, "counter")
		for _, s := range f.Series {
			sample(&b, f.Name, s.Labels, snapshot.Counters[s.ID])
		}
	}

	for _, h := range internaldefs.HistogramDefs {
		cumulative := internaldefs.Cumulative(snapshot.Histograms[h.ID])
		header(&b, h.Name, h.Help, "histogram")
		for i, le := range internaldefs.HistogramBounds {
			sample(&b, h.Name+"_bucket", []internaldefs.Label{{Name: "le", Value: le}}, cumulative[i])
		}
		sample(&b, h.Name+"_count", nil, cumulative[len(cumulative)-1])
		// The engine keeps bucket counts only, so there is no real sum.
		sample(&b, h.Name+"_sum", nil, 0)
	}

	header(&b, internaldefs.AuditDroppedName, "Audit events dropped under dispatcher backpressure.", "counter")
	sample(&b, internaldefs.AuditDroppedName, nil, dropped)

	return b.String()
}

func header(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteString("\n# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteByte('\n')
}

func sample(b *strings.Builder, name string, labels []internaldefs.Label, value uint64) {
	b.WriteString(name)
	if len(labels) > 0 {
		b.WriteByte('{')
		for i, l := range labels {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(l.Name)
			b.WriteString(`="`)
			b.WriteString(escapeLabel(l.Value))
			b.WriteByte('"')
		}
		b.WriteByte('}')
	}
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, `\`, `\\`)
	return strings.ReplaceAll(help, "\n", `\n`)
}

func escapeLabel(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return strings.ReplaceAll(v, "\n", `\n`)
}
