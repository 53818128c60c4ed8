package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix enables future algorithm migration.
const (
	DomainLayer = "tilekind/layer/v" + RecordVersion
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// LayerFingerprint computes the content hash of a compiled layer.
// The Fingerprint field itself and the matcher count are excluded, so two
// records with the same emitted SQL always share a fingerprint. Synthetic
// is hashed only when non-empty.
func LayerFingerprint(rec LayerRecord) (string, error) {
	params := make(IRArray, len(rec.Params))
	for i, p := range rec.Params {
		params[i] = IRObject{
			O("table", IRString(p.Table)),
			O("column", IRString(p.Column)),
			O("type", IRString(p.Type)),
		}
	}

	obj := IRObject{
		O("name", IRString(rec.Name)),
		O("params", params),
		O("kind_case", IRString(rec.KindCase)),
		O("min_zoom_case", IRString(rec.MinZoomCase)),
	}
	if len(rec.Synthetic) > 0 {
		obj = append(obj, O("synthetic", stringArray(rec.Synthetic)))
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("LayerFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainLayer, canonical), nil
}

func stringArray(ss []string) IRArray {
	arr := make(IRArray, len(ss))
	for i, s := range ss {
		arr[i] = IRString(s)
	}
	return arr
}
