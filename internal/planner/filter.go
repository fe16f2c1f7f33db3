package planner

import (
	"strings"

	"github.com/backmassage/vidopt/internal/config"
	"github.com/backmassage/vidopt/internal/probe"
)

// BuildReduceFilter constructs the comma-joined video filter chain for the
// reduce stage: optional deinterlace, optional HDR→SDR tonemap, the target
// scale, and an 8-bit 4:2:0 pixel format every H.264 encoder accepts.
func BuildReduceFilter(cfg *config.Config, pr *probe.ProbeResult) string {
	var filters []string

	if cfg.DeinterlaceAuto && pr.IsInterlaced() {
		filters = append(filters, "yadif=mode=send_frame:parity=auto:deint=interlaced")
	}

	tonemap := pr.HDRType() == "hdr10"
	if tonemap {
		filters = append(filters, tonemapChain)
	}

	filters = append(filters, "scale="+cfg.ReduceScale)

	if !tonemap {
		filters = append(filters, "format=yuv420p")
	}
	return strings.Join(filters, ",")
}

// tonemapChain converts HDR10/HLG to SDR bt709 before downscaling; the
// result is already yuv420p.
const tonemapChain = "zscale=t=linear:npl=100,format=gbrpf32le,zscale=p=bt709," +
	"tonemap=tonemap=hable:desat=0," +
	"zscale=t=bt709:m=bt709:r=tv,format=yuv420p"
