/*
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless  by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sliverstore

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/cespare/xxhash"
	"github.com/golang/snappy"
	"github.com/journeymidnight/sliver/encoding"
	"github.com/journeymidnight/sliver/wire_errors"
	"github.com/pkg/errors"
)

/*
sliver file:
+----------+-------+-------------+-------------------+-------------+
| magic(8) | flags | payload len | payload           | xxhash64(8) |
|          | (4)   | (4)         | canonical sliver, |             |
|          |       |             | maybe snappy      |             |
+----------+-------+-------------+-------------------+-------------+
the checksum covers everything before it
*/
const (
	sliverMagicNumber = "SLIVERXX"
	headerSize        = 16
	footerSize        = 8

	flagSnappy uint32 = 1 << 0
)

func encodeSliverFile(s *encoding.Sliver, compress bool) []byte {
	payload := s.CanonicalBytes()
	var flags uint32
	if compress {
		payload = snappy.Encode(nil, payload)
		flags |= flagSnappy
	}
	buf := make([]byte, headerSize+len(payload)+footerSize)
	copy(buf, sliverMagicNumber)
	binary.BigEndian.PutUint32(buf[8:], flags)
	binary.BigEndian.PutUint32(buf[12:], uint32(len(payload)))
	copy(buf[headerSize:], payload)
	sum := xxhash.Sum64(buf[:headerSize+len(payload)])
	binary.BigEndian.PutUint64(buf[headerSize+len(payload):], sum)
	return buf
}

func decodeSliverFile(data []byte) (encoding.Sliver, error) {
	if len(data) < headerSize+footerSize {
		return encoding.Sliver{}, errors.Wrapf(wire_errors.MalformedEncoding, "sliver file of %d bytes", len(data))
	}
	if string(data[:8]) != sliverMagicNumber {
		return encoding.Sliver{}, errors.Wrapf(wire_errors.MalformedEncoding, "magic number is %q", data[:8])
	}
	flags := binary.BigEndian.Uint32(data[8:])
	size := int(binary.BigEndian.Uint32(data[12:]))
	if headerSize+size+footerSize != len(data) {
		return encoding.Sliver{}, errors.Wrapf(wire_errors.MalformedEncoding, "payload length %d in a file of %d bytes", size, len(data))
	}
	sum := binary.BigEndian.Uint64(data[headerSize+size:])
	if xxhash.Sum64(data[:headerSize+size]) != sum {
		return encoding.Sliver{}, errors.Wrap(wire_errors.MalformedEncoding, "sliver file checksum mismatch")
	}
	payload := data[headerSize : headerSize+size]
	if flags&flagSnappy != 0 {
		var err error
		if payload, err = snappy.Decode(nil, payload); err != nil {
			return encoding.Sliver{}, errors.Wrapf(wire_errors.MalformedEncoding, "snappy: %v", err)
		}
	}
	return encoding.UnmarshalSliver(payload)
}

// writeFileSync writes through a temporary file so a crash never leaves a
// half written file under the final name.
func writeFileSync(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err = f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func sliverFileName(axis encoding.Axis, index uint16) string {
	return fmt.Sprintf("%s-%05d.sliver", axis, index)
}
