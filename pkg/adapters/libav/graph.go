package libav

import (
	"strconv"

	"github.com/user/framefusion/pkg/ports"
)

// graphDescription builds the filter chain between buffer and buffersink.
func graphDescription(opts ports.FilterOptions) string {
	out := opts.Output
	if out == "" {
		out = ports.PixelFormatRGBA
	}
	content := "format=pix_fmts=" + string(out)
	if opts.FPS > 0 {
		rate := strconv.FormatFloat(opts.FPS, 'f', -1, 64)
		if opts.Mode == ports.InterpolateHighQuality {
			content = "minterpolate=fps=" + rate + "," + content
		} else {
			content = "fps=" + rate + "," + content
		}
	}
	return content
}
