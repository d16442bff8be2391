package sri

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/pkcs12"
)

const (
	nsDS   = "http://www.w3.org/2000/09/xmldsig#"
	nsEtsi = "http://uri.etsi.org/01903/v1.3.2#"

	algC14N      = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	algRSASHA1   = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	algSHA1      = "http://www.w3.org/2000/09/xmldsig#sha1"
	algEnveloped = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
)

// Firmador produces XAdES-BES enveloped signatures as required by the SRI
// offline scheme (RSA-SHA1, inclusive C14N).
type Firmador struct {
	key  *rsa.PrivateKey
	cert *x509.Certificate
	now  func() time.Time
}

func NewFirmador(key *rsa.PrivateKey, cert *x509.Certificate) *Firmador {
	return &Firmador{key: key, cert: cert, now: time.Now}
}

// CargarFirmadorPKCS12 reads a .p12 token as issued by the Ecuadorian
// certification authorities. Those files usually carry the CA chain, so the
// certificate is picked by matching the private key modulus.
func CargarFirmadorPKCS12(path, password string) (*Firmador, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("firma: leer certificado: %w", err)
	}
	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		return nil, fmt.Errorf("firma: decodificar p12: %w", err)
	}

	var key *rsa.PrivateKey
	var certs []*x509.Certificate
	for _, b := range blocks {
		switch b.Type {
		case "PRIVATE KEY":
			k, err := x509.ParsePKCS1PrivateKey(b.Bytes)
			if err != nil {
				return nil, fmt.Errorf("firma: clave privada: %w", err)
			}
			key = k
		case "CERTIFICATE":
			c, err := x509.ParseCertificate(b.Bytes)
			if err != nil {
				return nil, fmt.Errorf("firma: certificado: %w", err)
			}
			certs = append(certs, c)
		}
	}
	if key == nil {
		return nil, errors.New("firma: el p12 no contiene clave RSA")
	}
	for _, c := range certs {
		if pub, ok := c.PublicKey.(*rsa.PublicKey); ok && pub.N.Cmp(key.N) == 0 {
			return NewFirmador(key, c), nil
		}
	}
	return nil, errors.New("firma: ningun certificado corresponde a la clave")
}

// Vencimiento returns the certificate expiry.
func (f *Firmador) Vencimiento() time.Time { return f.cert.NotAfter }

// Firmar signs an unsigned comprobante whose root carries id="comprobante".
func (f *Firmador) Firmar(doc []byte) ([]byte, error) {
	doc = bytes.TrimSpace(doc)
	if bytes.HasPrefix(doc, []byte("<?xml")) {
		if i := bytes.Index(doc, []byte("?>")); i >= 0 {
			doc = bytes.TrimSpace(doc[i+2:])
		}
	}
	cierre := bytes.LastIndex(doc, []byte("</"))
	if cierre < 0 {
		return nil, errors.New("firma: documento sin elemento raiz")
	}

	ids, err := nuevosIDs()
	if err != nil {
		return nil, err
	}
	ns := ` xmlns:ds="` + nsDS + `" xmlns:etsi="` + nsEtsi + `"`

	keyInfo := func(decl string) string {
		return `<ds:KeyInfo` + decl + ` Id="Certificate` + ids.cert + `"><ds:X509Data><ds:X509Certificate>` +
			base64.StdEncoding.EncodeToString(f.cert.Raw) +
			`</ds:X509Certificate></ds:X509Data><ds:KeyValue><ds:RSAKeyValue><ds:Modulus>` +
			base64.StdEncoding.EncodeToString(f.key.N.Bytes()) +
			`</ds:Modulus><ds:Exponent>` +
			base64.StdEncoding.EncodeToString(big.NewInt(int64(f.key.E)).Bytes()) +
			`</ds:Exponent></ds:RSAKeyValue></ds:KeyValue></ds:KeyInfo>`
	}

	signedPropsID := "Signature" + ids.firma + "-SignedProperties" + ids.props
	signedProps := func(decl string) string {
		return `<etsi:SignedProperties` + decl + ` Id="` + signedPropsID + `">` +
			`<etsi:SignedSignatureProperties><etsi:SigningTime>` + f.now().Format("2006-01-02T15:04:05-07:00") +
			`</etsi:SigningTime><etsi:SigningCertificate><etsi:Cert><etsi:CertDigest>` +
			`<ds:DigestMethod Algorithm="` + algSHA1 + `"></ds:DigestMethod><ds:DigestValue>` + digest(f.cert.Raw) +
			`</ds:DigestValue></etsi:CertDigest><etsi:IssuerSerial><ds:X509IssuerName>` + escapar(f.cert.Issuer.String()) +
			`</ds:X509IssuerName><ds:X509SerialNumber>` + f.cert.SerialNumber.String() +
			`</ds:X509SerialNumber></etsi:IssuerSerial></etsi:Cert></etsi:SigningCertificate></etsi:SignedSignatureProperties>` +
			`<etsi:SignedDataObjectProperties><etsi:DataObjectFormat ObjectReference="#Reference-ID-` + ids.ref + `">` +
			`<etsi:Description>contenido comprobante</etsi:Description><etsi:MimeType>text/xml</etsi:MimeType>` +
			`</etsi:DataObjectFormat></etsi:SignedDataObjectProperties></etsi:SignedProperties>`
	}

	signedInfo := func(decl string) string {
		return `<ds:SignedInfo` + decl + ` Id="Signature-SignedInfo` + ids.info + `">` +
			`<ds:CanonicalizationMethod Algorithm="` + algC14N + `"></ds:CanonicalizationMethod>` +
			`<ds:SignatureMethod Algorithm="` + algRSASHA1 + `"></ds:SignatureMethod>` +
			`<ds:Reference Id="SignedPropertiesID` + ids.propsRef + `" Type="http://uri.etsi.org/01903#SignedProperties" URI="#` + signedPropsID + `">` +
			`<ds:DigestMethod Algorithm="` + algSHA1 + `"></ds:DigestMethod><ds:DigestValue>` + digest([]byte(signedProps(ns))) + `</ds:DigestValue></ds:Reference>` +
			`<ds:Reference URI="#Certificate` + ids.cert + `">` +
			`<ds:DigestMethod Algorithm="` + algSHA1 + `"></ds:DigestMethod><ds:DigestValue>` + digest([]byte(keyInfo(ns))) + `</ds:DigestValue></ds:Reference>` +
			`<ds:Reference Id="Reference-ID-` + ids.ref + `" URI="#comprobante"><ds:Transforms><ds:Transform Algorithm="` + algEnveloped + `"></ds:Transform></ds:Transforms>` +
			`<ds:DigestMethod Algorithm="` + algSHA1 + `"></ds:DigestMethod><ds:DigestValue>` + digest(doc) + `</ds:DigestValue></ds:Reference>` +
			`</ds:SignedInfo>`
	}

	h := sha1.Sum([]byte(signedInfo(ns)))
	sig, err := rsa.SignPKCS1v15(rand.Reader, f.key, crypto.SHA1, h[:])
	if err != nil {
		return nil, fmt.Errorf("firma: rsa: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(`<ds:Signature` + ns + ` Id="Signature` + ids.firma + `">`)
	sb.WriteString(signedInfo(""))
	sb.WriteString(`<ds:SignatureValue Id="SignatureValue` + ids.valor + `">` + base64.StdEncoding.EncodeToString(sig) + `</ds:SignatureValue>`)
	sb.WriteString(keyInfo(""))
	sb.WriteString(`<ds:Object Id="Signature` + ids.firma + `-Object` + ids.objeto + `"><etsi:QualifyingProperties Target="#Signature` + ids.firma + `">`)
	sb.WriteString(signedProps(""))
	sb.WriteString(`</etsi:QualifyingProperties></ds:Object></ds:Signature>`)

	var out bytes.Buffer
	out.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	out.Write(doc[:cierre])
	out.WriteString(sb.String())
	out.Write(doc[cierre:])
	return out.Bytes(), nil
}

type idsFirma struct {
	firma, cert, props, propsRef, ref, info, valor, objeto string
}

func nuevosIDs() (idsFirma, error) {
	n := make([]string, 8)
	for i := range n {
		v, err := rand.Int(rand.Reader, big.NewInt(999999))
		if err != nil {
			return idsFirma{}, fmt.Errorf("firma: ids: %w", err)
		}
		n[i] = v.String()
	}
	return idsFirma{n[0], n[1], n[2], n[3], n[4], n[5], n[6], n[7]}, nil
}

func digest(b []byte) string {
	h := sha1.Sum(b)
	return base64.StdEncoding.EncodeToString(h[:])
}

var c14nTexto = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\r", "&#xD;")

func escapar(s string) string { return c14nTexto.Replace(s) }
