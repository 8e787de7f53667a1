package service

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// XML namespaces of the upstream request schemas.
const (
	nsListaMesaje     = "mfp:anaf:dgti:banci:reqListaMesaje:v1"
	nsStareMesaj      = "mfp:anaf:dgti:banci:reqStareMesaj:v1"
	nsDescarcareMesaj = "mfp:anaf:dgti:banci:reqDescarcareMesaj:v1"
	nsUploadFisier    = "mfp:anaf:dgti:banci:reqUploadFisier:v1"

	nsXSI = "http://www.w3.org/2001/XMLSchema-instance"
)

const xmlDeclaration = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// DefaultZile is the message-list window used when the caller supplies none.
// Format is days/hours.
const DefaultZile = "1/24"

// escapeAttr XML-escapes a caller-supplied attribute value.
func escapeAttr(v string) (string, error) {
	var buf bytes.Buffer
	if err := xml.EscapeText(&buf, []byte(v)); err != nil {
		return "", fmt.Errorf("escape attribute: %w", err)
	}
	return buf.String(), nil
}

// listaMesajePayload builds the message-list request envelope.
func listaMesajePayload(zile string) ([]byte, error) {
	if zile == "" {
		zile = DefaultZile
	}
	v, err := escapeAttr(zile)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf(
		xmlDeclaration+
			`<header xmlns="%s" xmlns:xsi="%s">`+
			`<listaMesaje Zile="%s"/>`+
			`</header>`,
		nsListaMesaje, nsXSI, v)), nil
}

// stareMesajPayload builds the message-status request envelope. The child
// element name matches the upstream schema, which reuses listaMesaje.
func stareMesajPayload(indexIncarcare string) ([]byte, error) {
	v, err := escapeAttr(indexIncarcare)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf(
		xmlDeclaration+
			`<header xmlns="%s" xmlns:xsi="%s">`+
			`<listaMesaje index_incarcare="%s"/>`+
			`</header>`,
		nsStareMesaj, nsXSI, v)), nil
}

// descarcareMesajPayload builds the message-download request envelope. The
// identifier rides on the header element itself in this schema.
func descarcareMesajPayload(idPortal string) ([]byte, error) {
	v, err := escapeAttr(idPortal)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf(
		xmlDeclaration+
			`<header xmlns="%s" xmlns:xsi="%s" id_portal="%s">`+
			`</header>`,
		nsDescarcareMesaj, nsXSI, v)), nil
}

// uploadMesajPayload builds the file-upload request envelope. fisier carries
// the base64-encoded file content.
func uploadMesajPayload(fisierB64 string) ([]byte, error) {
	v, err := escapeAttr(fisierB64)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf(
		xmlDeclaration+
			`<header xmlns="%s" xmlns:xsi="%s">`+
			`<upload fisier="%s"/>`+
			`</header>`,
		nsUploadFisier, nsXSI, v)), nil
}

// BootstrapPayload is the minimal probe payload for session establishment.
// Its business result is discarded; only the cookie side effect matters.
func BootstrapPayload() []byte {
	p, err := listaMesajePayload(DefaultZile)
	if err != nil {
		// The default window contains nothing escapable.
		panic(err)
	}
	return p
}
