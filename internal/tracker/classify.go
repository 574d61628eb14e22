package tracker

// Event kinds, in classification precedence order.
const (
	EventTypeLink     = "link"
	EventTypePixel    = "pixel"
	EventTypeCustom   = "custom"
	EventTypePageView = "pageview"
)

// Classify determines the event kind from the payload shape. First match
// wins: a link hit carrying a custom event name is still a link event.
func Classify(src Source, eventName string) string {
	switch {
	case src.Kind == SourceLink:
		return EventTypeLink
	case src.Kind == SourcePixel:
		return EventTypePixel
	case eventName != "":
		return EventTypeCustom
	default:
		return EventTypePageView
	}
}
