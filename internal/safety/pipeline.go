package safety

// Pipeline orchestrates the three safety stages while keeping each one
// individually addressable by callers that only need one stage (e.g. a
// tool executor that only wants ValidateShellCommand).
type Pipeline struct {
	Sanitizer *Sanitizer
	Validator *Validator
	Detector  *Detector
}

// NewPipeline builds a pipeline with all three stages enabled.
func NewPipeline(vaultPrefix string) *Pipeline {
	return &Pipeline{
		Sanitizer: NewSanitizer(),
		Validator: NewValidator(vaultPrefix),
		Detector:  NewDetector(),
	}
}

// ScreenInbound runs the input sanitizer over a message before it
// reaches the model.
func (p *Pipeline) ScreenInbound(content string) SanitizeResult {
	return p.Sanitizer.Sanitize(content)
}

// ScreenOutbound runs the output leak detector over model-generated
// text before it reaches the user or an external sink.
func (p *Pipeline) ScreenOutbound(text string) LeakResult {
	return p.Detector.Scan(text)
}
