// Package crypto implements NexLattice's symmetric envelope: AES-128-CBC
// encryption keyed by a per-peer session secret (falling back to a
// process-wide pre-shared key), SHA-256 signing, and challenge/response
// authentication. It is a direct port of the behavior in
// original_source/devices/crypto_utils.py, including its sign/verify
// asymmetry: messages are signed with the node's own private key but
// verified against the shared PSK, which makes this effectively a
// shared-secret MAC rather than a real signature. A future version should
// migrate to HMAC-SHA256 keyed directly by the PSK, or to real asymmetric
// signatures.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nexlattice/node/logging"
)

const challengeTTL = 30 * time.Second

// DefaultPSK is used when no psk is configured.
const DefaultPSK = "NexLatticeSharedSecretKey256"

type challengeRecord struct {
	challenge string
	issuedAt  time.Time
}

// Manager is the per-node crypto envelope. One Manager is constructed at
// startup and is immutable except for its session/challenge maps, both
// guarded by mutex.
type Manager struct {
	nodeID             string
	privateKey         Key
	publicFingerprint  [32]byte
	psk                Key
	forceXORFallback   bool
	log                logging.Logger

	mutex      sync.Mutex
	sessions   map[string]Key
	challenges map[string]challengeRecord
}

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithPSK overrides the default pre-shared key. psk must be exactly 32
// bytes once UTF-8 encoded; config loading enforces this, so Manager itself
// only pads/truncates defensively.
func WithPSK(psk string) Option {
	return func(m *Manager) {
		var k Key
		copy(k[:], []byte(psk))
		m.psk = k
	}
}

// WithForcedXORFallback makes the Manager always use the XOR-keystream
// fallback cipher instead of AES. The standard library always provides
// AES, so this path never triggers on its own in this implementation; the
// option exists so the fallback contract ("must be selected consistently by
// both ends, since a node running without an AES implementation can only
// talk to peers that made the same choice") stays testable.
func WithForcedXORFallback() Option {
	return func(m *Manager) { m.forceXORFallback = true }
}

// NewManager derives the node's private key from nodeID and fresh
// startup randomness, and its public fingerprint as H(private || "public"),
// exactly as original_source/devices/crypto_utils.py does with
// uhashlib.sha256.
func NewManager(nodeID string, log logging.Logger, opts ...Option) (*Manager, error) {
	seed, err := randomBytes(32)
	if err != nil {
		return nil, fmt.Errorf("crypto: generate seed: %w", err)
	}

	m := &Manager{
		nodeID:     nodeID,
		privateKey: sha256Sum([]byte(nodeID), seed),
		log:        log,
		sessions:   make(map[string]Key),
		challenges: make(map[string]challengeRecord),
	}
	copy(m.psk[:], []byte(DefaultPSK))

	for _, opt := range opts {
		opt(m)
	}

	m.publicFingerprint = sha256Sum(m.privateKey[:], []byte("public"))

	if m.forceXORFallback {
		log.Info("crypto: AES unavailable, falling back to XOR keystream (documented weakness)")
	}
	log.Infof("crypto initialized for %s", nodeID)
	return m, nil
}

// PublicFingerprint returns the hex-encoded public fingerprint advertised
// in DISCOVERY packets.
func (m *Manager) PublicFingerprint() string {
	return hex.EncodeToString(m.publicFingerprint[:])
}

// EstablishSession derives and stores a per-peer session key as
// H(own_private || peer_session_data || peer_id). peerSessionData arrives
// over the wire in a KEY_EXCHANGE message and is not authenticated in any
// way: an attacker on-path can supply their own session data and force a
// session key of their choosing. This is preserved for wire compatibility
// with the original implementation; a future version should authenticate
// the exchange.
func (m *Manager) EstablishSession(peerID, peerSessionData string) {
	key := sha256Sum(m.privateKey[:], []byte(peerSessionData), []byte(peerID))
	m.mutex.Lock()
	m.sessions[peerID] = key
	m.mutex.Unlock()
}

func (m *Manager) cipherKey(peerID string) []byte {
	m.mutex.Lock()
	session, ok := m.sessions[peerID]
	m.mutex.Unlock()
	if ok {
		return session[:16]
	}
	return m.psk[:16]
}

// Encrypt returns the hex-encoded IV||ciphertext for plaintext, using the
// peer's session key if established, else the process PSK.
func (m *Manager) Encrypt(plaintext string, peerID string) (string, error) {
	key := m.cipherKey(peerID)

	if m.forceXORFallback {
		return xorEncrypt([]byte(plaintext), key), nil
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	iv, err := randomBytes(aes.BlockSize)
	if err != nil {
		return "", fmt.Errorf("crypto: generate iv: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(append(iv, ciphertext...)), nil
}

// Decrypt reverses Encrypt. It returns ErrDecode for any malformed input:
// bad hex, wrong length, or invalid PKCS7 padding. The original Python
// implementation reads only the last pad byte and never validates the
// rest, which lets a corrupted or tampered ciphertext decrypt into garbage
// instead of failing; this implementation validates every pad byte so
// corruption is caught here instead of surfacing as a mangled payload
// further up the stack.
func (m *Manager) Decrypt(ciphertextHex string, peerID string) (string, error) {
	key := m.cipherKey(peerID)

	if m.forceXORFallback {
		return xorDecrypt(ciphertextHex, key)
	}

	raw, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(raw) < aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return "", ErrDecode
	}
	iv, body := raw[:aes.BlockSize], raw[aes.BlockSize:]
	if len(body) == 0 {
		return "", ErrDecode
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	plaintext := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, body)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - (len(data) % blockSize)
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrDecode
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, ErrDecode
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, ErrDecode
		}
	}
	return data[:len(data)-padLen], nil
}

func xorEncrypt(plaintext []byte, key []byte) string {
	out := make([]byte, len(plaintext))
	for i, b := range plaintext {
		out[i] = b ^ key[i%len(key)]
	}
	return hex.EncodeToString(out)
}

func xorDecrypt(ciphertextHex string, key []byte) (string, error) {
	raw, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	out := make([]byte, len(raw))
	for i, b := range raw {
		out[i] = b ^ key[i%len(key)]
	}
	return string(out), nil
}

// canonicalize puts a message into the one byte representation both sides
// will agree on before hashing it: a mapping serializes as JSON with keys
// sorted lexicographically (which is exactly what encoding/json already
// does for map[string]interface{} — Go's JSON encoder always emits map
// keys in sorted order), anything else coerces to its string form.
func canonicalize(message interface{}) ([]byte, error) {
	switch v := message.(type) {
	case map[string]interface{}:
		return json.Marshal(v)
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return []byte(fmt.Sprintf("%v", v)), nil
	}
}

// Sign returns SHA-256(canonical(message) || private_key) as lowercase
// hex.
func (m *Manager) Sign(message interface{}) (string, error) {
	canonical, err := canonicalize(message)
	if err != nil {
		return "", err
	}
	sum := sha256Sum(canonical, m.privateKey[:])
	return hex.EncodeToString(sum[:]), nil
}

// Verify recomputes SHA-256(canonical(message) || psk) and compares to sig
// in constant time. peerID is accepted for interface symmetry with Sign's
// wire-compatible counterpart but is unused: verification is always
// against the shared PSK (see the package doc's asymmetry note).
func (m *Manager) Verify(message interface{}, sigHex string, peerID string) bool {
	canonical, err := canonicalize(message)
	if err != nil {
		return false
	}
	expected := sha256Sum(canonical, m.psk[:])
	return constantTimeHexEqual(sigHex, hex.EncodeToString(expected[:]))
}

func constantTimeHexEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// SignAndEncrypt inserts the signature under "signature" in msg, then
// encrypts the resulting JSON object for peerID.
func (m *Manager) SignAndEncrypt(msg map[string]interface{}, peerID string) (string, error) {
	sig, err := m.Sign(msg)
	if err != nil {
		return "", err
	}
	signed := make(map[string]interface{}, len(msg)+1)
	for k, v := range msg {
		signed[k] = v
	}
	signed["signature"] = sig

	body, err := json.Marshal(signed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return m.Encrypt(string(body), peerID)
}

// DecryptAndVerify reverses SignAndEncrypt: decrypt, parse JSON, extract
// and remove "signature", verify it, and return the remaining object.
// Any failure along the way — bad ciphertext, bad JSON, missing signature,
// failed verification — returns ErrDecode or ErrVerify.
func (m *Manager) DecryptAndVerify(ciphertextHex string, peerID string) (map[string]interface{}, error) {
	plaintext, err := m.Decrypt(ciphertextHex, peerID)
	if err != nil {
		return nil, err
	}

	var msg map[string]interface{}
	if err := json.Unmarshal([]byte(plaintext), &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	sig, ok := msg["signature"].(string)
	if !ok || sig == "" {
		return nil, ErrVerify
	}
	delete(msg, "signature")

	if !m.Verify(msg, sig, peerID) {
		return nil, ErrVerify
	}
	return msg, nil
}

// GenerateChallenge creates and stores a fresh 16-byte hex challenge for
// peerID, replacing any outstanding one (at most one challenge per peer).
func (m *Manager) GenerateChallenge(peerID string) (string, error) {
	challenge, err := randomHex(16)
	if err != nil {
		return "", err
	}
	m.mutex.Lock()
	m.challenges[peerID] = challengeRecord{challenge: challenge, issuedAt: time.Now()}
	m.mutex.Unlock()
	return challenge, nil
}

// ComputeResponse answers a challenge issued by a peer: SHA-256(challenge
// || psk) as hex.
func (m *Manager) ComputeResponse(challengeHex string) string {
	sum := sha256Sum([]byte(challengeHex), m.psk[:])
	return hex.EncodeToString(sum[:])
}

// VerifyResponse checks a peer's response to a challenge we issued. The
// challenge record is consumed (deleted) whether verification passes or
// fails. It returns ErrChallengeExpired, distinct from a bare false, when
// the record existed but outlived its 30s TTL — the caller can tell "the
// peer answered too late" from "the peer answered wrong" and decide
// whether to just reissue a fresh challenge.
func (m *Manager) VerifyResponse(peerID, responseHex string) (bool, error) {
	m.mutex.Lock()
	record, ok := m.challenges[peerID]
	delete(m.challenges, peerID)
	m.mutex.Unlock()

	if !ok {
		return false, nil
	}
	if time.Since(record.issuedAt) > challengeTTL {
		return false, ErrChallengeExpired
	}

	expected := m.ComputeResponse(record.challenge)
	return constantTimeHexEqual(responseHex, expected), nil
}
