package ts

// MPEG-2 CRC32 (poly 0x04C11DB7, init 0xffffffff, no reflection, no final xor).
// PAT/PMT 섹션 끝의 CRC_32 필드에 쓰인다.
var crc32Table [256]uint32

func init() {
	for i := 0; i < 256; i++ {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ 0x04c11db7
			} else {
				crc <<= 1
			}
		}
		crc32Table[i] = crc
	}
}

func GenCrc32(src []byte) uint32 {
	crc := uint32(0xffffffff)
	for _, b := range src {
		crc = (crc << 8) ^ crc32Table[byte(crc>>24)^b]
	}
	return crc
}
