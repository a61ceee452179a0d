// Package chatmsg holds the message type shared by the talker and listener
// demo binaries.
package chatmsg

import "time"

type Chat struct {
	Seq  int64     `cbor:"seq"`
	From string    `cbor:"from"`
	Text string    `cbor:"text"`
	Sent time.Time `cbor:"sent"`
}
