package probe

import "fmt"

// summarize renders the exact "TCP OK (Xms); HTTP OK (code, Yms)" / FAIL
// variants required by spec.md §4.3 step 9.
func summarize(tcpOk bool, tcpLatencyMs int64, httpOk bool, httpStatusCode *int, httpLatencyMs int64) string {
	tcpPart := "TCP FAIL"
	if tcpOk {
		tcpPart = fmt.Sprintf("TCP OK (%dms)", tcpLatencyMs)
	}

	httpPart := "HTTP FAIL"
	if httpStatusCode != nil {
		code := *httpStatusCode
		if httpOk {
			httpPart = fmt.Sprintf("HTTP OK (%d, %dms)", code, httpLatencyMs)
		} else {
			httpPart = fmt.Sprintf("HTTP FAIL (%d, %dms)", code, httpLatencyMs)
		}
	}

	return tcpPart + "; " + httpPart
}
