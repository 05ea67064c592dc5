package analysis

import (
	"productlens/imaging"
	"productlens/schema"
)

// Report is the serialisable form of an AnalysisResult, shared by the
// HTTP API and batch output.
type Report struct {
	RequestID     string                `json:"request_id"`
	PrdNo         string                `json:"prd_no"`
	Model         string                `json:"model"`
	Provider      string                `json:"provider"`
	OK            bool                  `json:"ok"`
	Error         string                `json:"error,omitempty"`
	TextOnlyRetry bool                  `json:"text_only_retry"`
	BlockReason   string                `json:"block_reason,omitempty"`
	Attempts      int                   `json:"attempts"`
	ImageCount    int                   `json:"image_count"`
	Images        []imaging.ImageRef    `json:"used_images"`
	ElapsedMS     int64                 `json:"elapsed_ms"`
	ExtractedText string                `json:"extracted_text,omitempty"`
	Result        *schema.ProductSchema `json:"result"`
}

// Report converts r. withText includes the extracted detail text.
func (r *AnalysisResult) Report(withText bool) Report {
	rep := Report{
		RequestID:     r.RequestID,
		Model:         r.Model,
		Provider:      string(r.Family),
		OK:            r.OK(),
		Error:         r.Failure,
		TextOnlyRetry: r.TextOnlyRetry,
		BlockReason:   r.BlockReason,
		Attempts:      r.Attempts,
		ImageCount:    len(r.UsedImageRefs),
		Images:        r.UsedImageRefs,
		ElapsedMS:     r.Elapsed.Milliseconds(),
		Result:        r.Result,
	}
	if rep.Images == nil {
		rep.Images = []imaging.ImageRef{}
	}
	if r.Product != nil {
		rep.PrdNo = r.Product.PrdNo
	}
	if withText {
		rep.ExtractedText = r.ExtractedText
	}
	return rep
}
