package uid

import (
	"encoding/base64"
	"strings"

	uuid "github.com/satori/go.uuid"
)

// NewId 는 URL 에 그대로 쓸 수 있는 16 글자 아이디를 만든다.
func NewId() string {
	id := uuid.NewV4()
	b64 := base64.URLEncoding.EncodeToString(id.Bytes()[:12])
	return strings.Replace(b64, "/", "_", -1)
}
