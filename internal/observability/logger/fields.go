package logger

import (
	"time"

	"go.uber.org/zap"
)

// Campos estándar — HTTP

func RequestID(v string) zap.Field { return zap.String("request_id", v) }

func Method(v string) zap.Field { return zap.String("method", v) }

func Path(v string) zap.Field { return zap.String("path", v) }

func Status(v int) zap.Field { return zap.Int("status", v) }

func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }

// Campos estándar — dominio

func InstitutionID(v string) zap.Field { return zap.String("institution_id", v) }

func DocumentID(v string) zap.Field { return zap.String("document_id", v) }

func UserID(v string) zap.Field { return zap.String("user_id", v) }

func KeyVersion(v int) zap.Field { return zap.Int("key_version", v) }

func DocType(v string) zap.Field { return zap.String("doc_type", v) }

// Campos estándar — sistema

func Component(v string) zap.Field { return zap.String("component", v) }

func Op(v string) zap.Field { return zap.String("op", v) }

func Err(err error) zap.Field { return zap.Error(err) }

// Genéricos

func String(key, v string) zap.Field { return zap.String(key, v) }

func Int(key string, v int) zap.Field { return zap.Int(key, v) }
