package viewmodel

// Follower tracks the auto-scroll policy for one viewer. The view follows
// the end of the log until the viewer scrolls away from the bottom, and
// resumes once they return to the bottom or ask for the latest message.
type Follower struct {
	following bool
	unseen    int
}

// NewFollower returns a follower that starts at the bottom.
func NewFollower() *Follower {
	return &Follower{following: true}
}

// Scrolled records a manual scroll by the viewer.
func (f *Follower) Scrolled(atBottom bool) {
	f.following = atBottom
	if atBottom {
		f.unseen = 0
	}
}

// ScrollToLatest re-engages auto-scroll.
func (f *Follower) ScrollToLatest() {
	f.following = true
	f.unseen = 0
}

// ContentChanged reports whether the viewer should be scrolled to the end
// after new content arrived. While disengaged it counts unseen updates.
func (f *Follower) ContentChanged() bool {
	if f.following {
		return true
	}
	f.unseen++
	return false
}

// Following reports whether auto-scroll is engaged.
func (f *Follower) Following() bool {
	return f.following
}

// Unseen returns the number of updates that arrived while disengaged.
func (f *Follower) Unseen() int {
	return f.unseen
}
