package widget

// Scroll geometry thresholds, in pixels. The engine never touches the DOM;
// callers feed it measurements and apply the offsets it hands back.
const (
	topLoadThreshold    = 100
	bottomLoadThreshold = 100
	nearBottomThreshold = 80
	firstUnreadMargin   = 80
)

// ShouldLoadTop reports whether scrolling near the top should trigger an
// older-page fetch.
func ShouldLoadTop(scrollTop float64, hasMoreTop bool) bool {
	return hasMoreTop && scrollTop <= topLoadThreshold
}

// ShouldLoadBottom reports whether scrolling near the bottom should trigger
// a newer-page fetch.
func ShouldLoadBottom(distanceFromBottom float64, hasMoreBottom bool) bool {
	return hasMoreBottom && distanceFromBottom <= bottomLoadThreshold
}

// IsNearBottom reports whether the viewport is close enough to the bottom
// that a live push should auto-scroll instead of counting as pending.
func IsNearBottom(distanceFromBottom float64) bool {
	return distanceFromBottom <= nearBottomThreshold
}

// OffsetAfterPrepend returns the scroll offset that keeps the reader's
// content stationary after older messages grew the scroll height.
func OffsetAfterPrepend(prevScrollHeight, prevScrollTop, newScrollHeight float64) float64 {
	return prevScrollTop + (newScrollHeight - prevScrollHeight)
}

// InitialScrollOffset positions the first-unread item a margin below the
// top of the viewport on initial load.
func InitialScrollOffset(firstUnreadTop float64) float64 {
	offset := firstUnreadTop - firstUnreadMargin
	if offset < 0 {
		return 0
	}
	return offset
}
