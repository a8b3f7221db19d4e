package prometheus

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	goSessionAuth "github.com/MrEthical07/goSessionAuth"
	"github.com/MrEthical07/goSessionAuth/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

// Source is the part of [goSessionAuth.Engine] the exporter reads.
type Source interface {
	MetricsSnapshot() goSessionAuth.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter renders a [Source] on every scrape.
type Exporter struct {
	source Source
}

// New returns an Exporter reading from source, usually the engine.
func New(source Source) *Exporter {
	return &Exporter{source: source}
}

// Handler serves the current metrics. HEAD requests get headers only.
func (e *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := e.Render()
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(body)
	})
}

// Render returns the exposition text. It is empty when metrics are disabled
// on the engine and no audit events were dropped.
func (e *Exporter) Render() []byte {
	if e == nil || e.source == nil {
		return nil
	}
	snap := e.source.MetricsSnapshot()
	dropped := e.source.AuditDropped()
	if len(snap.Counters) == 0 && dropped == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, f := range internaldefs.Families {
		header(&buf, f.Name, f.Help, "counter")
		for _, s := range f.Series {
			if f.Label == "" {
				fmt.Fprintf(&buf, "%s %d\n", f.Name, snap.Counters[s.ID])
				continue
			}
			fmt.Fprintf(&buf, "%s{%s=%q} %d\n", f.Name, f.Label, s.Value, snap.Counters[s.ID])
		}
	}

	if counts, ok := snap.Histograms[goSessionAuth.MetricAuthenticateLatency]; ok {
		header(&buf, internaldefs.LatencyName, internaldefs.LatencyHelp, "histogram")
		buckets := internaldefs.LatencyBuckets(counts)
		for _, b := range buckets {
			fmt.Fprintf(&buf, "%s_bucket{le=%q} %d\n", internaldefs.LatencyName, b.Le, b.Count)
		}
		sum := snap.HistogramSums[goSessionAuth.MetricAuthenticateLatency]
		fmt.Fprintf(&buf, "%s_sum %g\n", internaldefs.LatencyName, sum.Seconds())
		fmt.Fprintf(&buf, "%s_count %d\n", internaldefs.LatencyName, buckets[len(buckets)-1].Count)
	}

	header(&buf, internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, "counter")
	fmt.Fprintf(&buf, "%s %d\n", internaldefs.AuditDroppedName, dropped)

	return buf.Bytes()
}

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

func header(buf *bytes.Buffer, name, help, typ string) {
	fmt.Fprintf(buf, "# HELP %s %s\n# TYPE %s %s\n", name, helpEscaper.Replace(help), name, typ)
}
