package core

import "errors"

var (
	ErrNotFound = errors.New("not_found")
	// ErrConflict: la entidad ya existe (ej. doble revocación del mismo documento).
	ErrConflict = errors.New("conflict")
	// ErrInvariant: el store está en un estado que los invariantes prohíben
	// (ej. current_key_version sin fila en el historial). Fatal, fail closed.
	ErrInvariant = errors.New("invariant_violation")
)
