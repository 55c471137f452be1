// Package qrcode renders QR codes as PNG bytes or data URIs and builds the
// student login badge.
//
// A badge encodes "<userId>|<tenantId>" so the mobile app can sign a student
// in by scanning it and send the tenant along in the X-Tenant-ID header.
// ParseBadge reverses the payload.
package qrcode
