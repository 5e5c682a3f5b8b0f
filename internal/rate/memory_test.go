package rate

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiter_AllowsUpToMax(t *testing.T) {
	t.Parallel()
	l := NewMemoryLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := l.Allow(ctx, "sign:1.2.3.4")
		if err != nil {
			t.Fatal(err)
		}
		if !res.Allowed {
			t.Fatalf("hit %d bloqueado", i)
		}
		if res.CurrentHits != int64(i) {
			t.Fatalf("hits: got %d want %d", res.CurrentHits, i)
		}
	}

	res, err := l.Allow(ctx, "sign:1.2.3.4")
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed {
		t.Fatal("cuarto hit pasó con max=3")
	}
	if res.Remaining != 0 {
		t.Fatalf("remaining: got %d want 0", res.Remaining)
	}
	if res.RetryAfter <= 0 || res.RetryAfter > time.Minute {
		t.Fatalf("retry after fuera de rango: %v", res.RetryAfter)
	}
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	t.Parallel()
	l := NewMemoryLimiter(1, time.Minute)
	ctx := context.Background()

	if res, _ := l.Allow(ctx, "verify:a"); !res.Allowed {
		t.Fatal("primer hit de a bloqueado")
	}
	if res, _ := l.Allow(ctx, "verify:a"); res.Allowed {
		t.Fatal("segundo hit de a pasó")
	}
	if res, _ := l.Allow(ctx, "verify:b"); !res.Allowed {
		t.Fatal("el límite de a contaminó a b")
	}
}

func TestMemoryLimiter_WindowResets(t *testing.T) {
	t.Parallel()
	// ventana mínima para no dormir de más
	l := NewMemoryLimiter(1, 50*time.Millisecond)
	ctx := context.Background()

	if res, _ := l.Allow(ctx, "k"); !res.Allowed {
		t.Fatal("primer hit bloqueado")
	}
	if res, _ := l.Allow(ctx, "k"); res.Allowed {
		t.Fatal("segundo hit pasó dentro de la ventana")
	}

	time.Sleep(60 * time.Millisecond)
	if res, _ := l.Allow(ctx, "k"); !res.Allowed {
		t.Fatal("ventana nueva sigue bloqueada")
	}
}
