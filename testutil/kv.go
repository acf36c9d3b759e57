package testutil

// RandKey and RandValue generate short random byte strings for property
// tests, biased toward small sizes so many keys collide against a small
// maxSize budget the way spec scenarios do.
func RandKey() []byte {
	return randBytes(1 + Rand.Intn(6))
}

func RandValue() []byte {
	return randBytes(Rand.Intn(10))
}

func randBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + Rand.Intn(26))
	}
	return b
}
