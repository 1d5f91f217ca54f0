// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package efpacket

// CRC-8 (poly 0x07, init 0x00, MSB first) over the header,
// CRC-16/ARC (poly 0x8005 reflected, init 0x0000) over the frame.
const (
	crc8Polynomial  = 0x07
	crc8Initial     = 0x00
	crc16Polynomial = 0xA001
	crc16Initial    = 0x0000
)

var (
	crc8Table  = makeCRC8Table()
	crc16Table = makeCRC16Table()
)

func makeCRC8Table() (table [256]uint8) {
	for i := range table {
		crc := uint8(i)
		for bit := 0; bit < 8; bit++ {
			if crc&0x80 != 0 {
				crc = (crc << 1) ^ crc8Polynomial
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}

func makeCRC16Table() (table [256]uint16) {
	for i := range table {
		crc := uint16(i)
		for bit := 0; bit < 8; bit++ {
			if crc&0x0001 != 0 {
				crc = (crc >> 1) ^ crc16Polynomial
			} else {
				crc >>= 1
			}
		}
		table[i] = crc
	}
	return table
}

// CRC8 computes the header checksum for the given data
func CRC8(data []byte) uint8 {
	crc := uint8(crc8Initial)
	for _, b := range data {
		crc = crc8Table[crc^b]
	}
	return crc
}

// CRC16 computes the frame checksum for the given data
func CRC16(data []byte) uint16 {
	crc := uint16(crc16Initial)
	for _, b := range data {
		crc = (crc >> 8) ^ crc16Table[uint8(crc)^b]
	}
	return crc
}
