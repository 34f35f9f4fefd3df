package libav

// sendAndReceive feeds one input to a codec and collects its output. When
// full reports that the codec input is full, the pending output is drained
// first and the input is sent again once.
func sendAndReceive[T any](send func() error, receive func() ([]T, error), full func(error) bool) ([]T, error) {
	err := send()
	if err == nil {
		return receive()
	}
	if !full(err) {
		return nil, err
	}

	drained, err := receive()
	if err != nil {
		return drained, err
	}
	if err := send(); err != nil {
		return drained, err
	}
	more, err := receive()
	return append(drained, more...), err
}
