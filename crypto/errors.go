package crypto

import "errors"

// ErrDecode is returned when a ciphertext cannot be decoded, decrypted, or
// parsed back into the structure the caller expected.
var ErrDecode = errors.New("crypto: decode error")

// ErrVerify is returned when a signature is missing, malformed, or fails to
// verify.
var ErrVerify = errors.New("crypto: signature verification failed")

// ErrChallengeExpired is returned by VerifyResponse when a response arrives
// for a challenge that existed but has outlived its TTL, distinct from a
// response that simply doesn't match — a caller may want to reissue a
// fresh challenge in the first case but treat the second as a hard
// authentication failure.
var ErrChallengeExpired = errors.New("crypto: challenge expired")
