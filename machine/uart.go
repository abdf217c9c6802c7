package machine

import (
	"fmt"

	"github.com/colorfulnotion/clustersim/common"
)

func (h *Hart) putchar(b byte) {
	if b == '\n' {
		h.flushUART()
		return
	}
	h.uart = append(h.uart, b)
}

// flushUART prints the buffered line with a per-hart prefix.
func (h *Hart) flushUART() {
	if len(h.uart) == 0 {
		return
	}
	g := h.Global
	prefix := common.Colorize(g.color, common.HartColor(h.Index), fmt.Sprintf("[hart %d]", h.ID))
	g.uartMu.Lock()
	fmt.Fprintf(g.out, "%s %s\n", prefix, h.uart)
	g.uartMu.Unlock()
	h.uart = h.uart[:0]
}
