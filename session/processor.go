package session

// VoiceProfile is the metadata of the currently selected voice. Only
// metadata travels here; voice payloads stay in the offline vault or
// the catalog.
type VoiceProfile struct {
	ID       string `json:"id"`
	Style    string `json:"style"`
	Gender   string `json:"gender"`
	Category string `json:"category"`
}

// Processor is the transformation stage. The real model is not wired
// yet: this is a pass-through with light gain shaping per profile so
// the surrounding gating contract can be exercised end to end.
type Processor struct {
	profile *VoiceProfile
}

// NewProcessor returns a processor for the given profile; nil means
// plain pass-through.
func NewProcessor(profile *VoiceProfile) *Processor {
	return &Processor{profile: profile}
}

// Process copies one cycle of input to output, applying the profile's
// gain shaping.
func (p *Processor) Process(in, out []float32) {
	gain := float32(1.0)
	if p.profile != nil {
		if p.profile.Gender == "female" {
			gain *= 1.1
		}
		if p.profile.Style == "deep" {
			gain *= 0.9
		}
	}
	n := len(in)
	if len(out) < n {
		n = len(out)
	}
	for i := 0; i < n; i++ {
		out[i] = in[i] * gain
	}
}

// Silence zeroes one cycle of output. Used when a cycle lands after
// revocation: no transformed audio may be emitted.
func Silence(out []float32) {
	for i := range out {
		out[i] = 0
	}
}
