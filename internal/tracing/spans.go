package tracing

// Span names for the template pipeline.
const (
	SpanParse  = "template.parse"
	SpanRender = "template.render"
	SpanData   = "data.load"
	SpanWatch  = "watch.cycle"
)

// Span attribute keys. These are the semantic conventions for pipeline
// spans; the exporter passes them through untouched.
const (
	AttrTemplateName = "template.name"
	AttrTemplateSize = "template.bytes"
	AttrVarCount     = "vars.count"
	AttrOutputSize   = "output.bytes"
	AttrFilters      = "filters.applied"
	AttrDataFile     = "data.file"
	AttrCacheTTL     = "cache.ttl"
	AttrErrorMessage = "error.message"
)
