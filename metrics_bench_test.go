package goSessionAuth

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/goSessionAuth/store"
	"github.com/MrEthical07/goSessionAuth/store/memory"
)

func BenchmarkMetricsInc(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Inc(MetricLoginSuccess)
	}
}

func BenchmarkMetricsIncDisabled(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Inc(MetricLoginSuccess)
	}
}

func BenchmarkMetricsIncParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Inc(MetricLoginSuccess)
		}
	})
}

func BenchmarkMetricsIncDisabledParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Inc(MetricLoginSuccess)
		}
	})
}

func BenchmarkMetricsObserveLatencyParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	d := 12 * time.Millisecond
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Observe(MetricAuthenticateLatency, d)
		}
	})
}

func BenchmarkMetricsAuthenticate(b *testing.B) {
	env := newBenchEnv(b)
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := env.engine.Authenticate(context.Background(), env.access); err != nil {
			b.Fatal(err)
		}
	}
}

type benchEnv struct {
	engine *Engine
	access string
}

func newBenchEnv(b *testing.B) benchEnv {
	b.Helper()
	st := memory.New()
	engine, err := New().
		WithConfig(testConfig()).
		WithStore(st).
		WithMailer(&fakeMailer{}).
		Build()
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(engine.Close)

	hash, err := engine.hasher.Hash(testPassword)
	if err != nil {
		b.Fatal(err)
	}
	u := &store.User{ID: "bench-user", Email: "bench@x.com", PasswordHash: &hash, IsVerified: true}
	if err := st.Users().Create(context.Background(), u); err != nil {
		b.Fatal(err)
	}
	res, err := engine.Login(desktopCtx(), LoginInput{Email: u.Email, Password: testPassword})
	if err != nil {
		b.Fatal(err)
	}
	return benchEnv{engine: engine, access: res.Auth.Tokens.AccessToken}
}
