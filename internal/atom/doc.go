// Package atom reads and builds ISO-BMFF boxes ("atoms") in MP4 and MOV
// recordings.
//
// A container is a flat sequence of length-prefixed boxes: a big-endian
// 32-bit size, a four character type, and a payload. A size of 1 means a
// 64-bit extended size follows the type, and a size of 0 means the box runs to
// the end of its container. The parser only walks box boundaries; it never
// interprets sample tables or track data.
//
// The package also owns the XMP detection query. Recordings written by
// bettermarkers carry their XMP packet in a top-level uuid box tagged with the
// Adobe XMP UUID, but files produced by older releases or third-party tools may
// store it as a top-level XMP_ box or inside moov/udta. Detect recognises all
// three shapes; Build and BuildUUID only ever produce the first.
package atom
