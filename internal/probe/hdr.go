package probe

// HDRType returns "hdr10" if the primary video stream carries PQ/HLG
// transfer or bt2020 primaries, otherwise "sdr". The reduce stage uses it to
// decide whether an 8-bit conversion needs tonemapping first.
func (p *ProbeResult) HDRType() string {
	if p.PrimaryVideo == nil {
		return "sdr"
	}
	switch p.PrimaryVideo.ColorTransfer {
	case "smpte2084", "arib-std-b67":
		return "hdr10"
	}
	if p.PrimaryVideo.ColorPrimaries == "bt2020" {
		return "hdr10"
	}
	return "sdr"
}
