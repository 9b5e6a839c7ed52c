package trace

import (
	"fmt"
	"strings"
)

const (
	lgtinClassPrefix = "urn:epc:class:lgtin:"
	sglnPrefix       = "urn:epc:id:sgln:"
	containerPrefix  = "urn:pharmatrace:container:"
)

// BatchClass is the EPC class URI of a GTIN + batch lot. It identifies the
// batch both as an event subject and as a quantity-list class.
func BatchClass(gtin, batchNo string) string {
	return lgtinClassPrefix + strings.TrimSpace(gtin) + "." + strings.TrimSpace(batchNo)
}

// SplitBatchClass is the inverse of BatchClass.
func SplitBatchClass(uri string) (gtin string, batchNo string, ok bool) {
	rest, found := strings.CutPrefix(uri, lgtinClassPrefix)
	if !found {
		return "", "", false
	}
	return strings.Cut(rest, ".")
}

// SGLN renders a location URI for a GLN with the default extension.
func SGLN(gln string) string {
	gln = strings.TrimSpace(gln)
	if gln == "" {
		return ""
	}
	if strings.HasPrefix(gln, sglnPrefix) {
		return gln
	}
	return sglnPrefix + gln + ".0.0"
}

// ContainerURN identifies a container that has no SSCC.
func ContainerURN(kind string, id uint64) string {
	return fmt.Sprintf("%s%s:%d", containerPrefix, kind, id)
}
