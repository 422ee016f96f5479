// Package codec defines the serialization boundary between caller value
// types and the byte records surge stores. One generic cache engine serves
// many payload shapes; the codec is chosen per cache at construction time.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
