// Package storage es el colaborador de archivos del core: recibe bytes y
// devuelve una referencia opaca que se persiste en la metadata del
// documento. El core jamás maneja paths ni buckets directamente.
package storage

import "context"

type Store interface {
	// WriteFile persiste data y devuelve la referencia definitiva.
	WriteFile(ctx context.Context, ref string, data []byte) (string, error)
	// ReadFile devuelve los bytes exactos guardados bajo ref.
	ReadFile(ctx context.Context, ref string) ([]byte, error)
}
