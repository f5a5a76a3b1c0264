// Carga de certificado digital A1 (.p12/.pfx) ou par PEM.

package signer

import (
	"crypto/tls"
	"fmt"
	"os"

	"golang.org/x/crypto/pkcs12"
)

// LoadFromP12 carrega certificado e chave privada de um arquivo .p12/.pfx
// (certificado A1 padrão ICP-Brasil). O password pode ser vazio se o arquivo
// não estiver protegido.
func LoadFromP12(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("ler p12: %w", err)
	}
	priv, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decodificar p12: %w", err)
	}
	// pkcs12.Decode devolve um único certificado; tls.Certificate espera uma
	// cadeia. Para a SEFAZ basta o certificado folha.
	return tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  priv,
		Leaf:        cert,
	}, nil
}

// LoadFromPEM carrega certificado e chave de arquivos PEM (separados ou
// combinados no mesmo arquivo). certPath vazio devolve certificado zero e
// err nil: modo simulado, sem assinatura.
func LoadFromPEM(certPath, keyPath string) (tls.Certificate, error) {
	if certPath == "" {
		return tls.Certificate{}, nil
	}
	if keyPath == "" {
		return tls.LoadX509KeyPair(certPath, certPath)
	}
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("carregar PEM: %w", err)
	}
	return cert, nil
}
