package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ContactURL builds the WhatsApp deep-link a visitor uses to ask about a product.
func ContactURL(phone, productName, productCode string) string {
	message := fmt.Sprintf("Olá! Tenho interesse no produto:\nNome: %s\nCódigo: %s\nGostaria de mais informações.",
		productName, productCode)
	// wa.me expects %20 rather than "+" for spaces.
	text := strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
	return fmt.Sprintf("https://wa.me/%s?text=%s", phone, text)
}

var driveFileID = regexp.MustCompile(`https://drive\.google\.com/(?:file/d/|open\?id=)([a-zA-Z0-9_-]+)`)

// NormalizeImageURL converts a Google Drive share link into a direct image URL.
// Any other URL is returned unchanged.
func NormalizeImageURL(raw string) string {
	m := driveFileID.FindStringSubmatch(raw)
	if len(m) < 2 {
		return raw
	}
	return "https://drive.google.com/uc?export=view&id=" + m[1]
}
