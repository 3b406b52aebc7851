// Package slotmath derives the hash slot a key belongs to.
//
//   - crc16.go: CRC16/XMODEM table and checksum
//   - slot.go: hash-tag extraction and slot derivation
//
// @design DS-0405
package slotmath
