package codec

import "google.golang.org/protobuf/proto"

// Protobuf serializes generated proto messages. Decode needs a fresh
// message to unmarshal into, so the codec is built around a constructor:
//
//	codec.NewProtobuf(func() *userpb.User { return &userpb.User{} })
type Protobuf[T proto.Message] struct {
	newMessage func() T
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{newMessage: ctor}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) { return proto.Marshal(v) }

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.newMessage()
	err := proto.Unmarshal(b, m)
	return m, err
}
