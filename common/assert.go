package common

// HB_Assert panics with msg when condition does not hold.
func HB_Assert(condition bool, msg string) {
	if !condition {
		panic(msg)
	}
}
