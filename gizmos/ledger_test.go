package gizmos

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLedgerCheckReserveFreeRoundTrip(t *testing.T) {
	l := Mk_ledger()
	cap := Capacity{Cpu: 8, Ram: 4096, Disk: 100}
	need := Capacity{Cpu: 2, Ram: 512, Disk: 10}

	assert.True(t, l.Check(cap, need))
	assert.True(t, l.Reserve(cap, need))

	free := l.Snapshot(cap)
	assert.Equal(t, cap.Cpu-need.Cpu, free.Cpu)
	assert.Equal(t, cap.Ram-need.Ram, free.Ram)
	assert.Equal(t, cap.Disk-need.Disk, free.Disk)

	l.Free(need)
	free = l.Snapshot(cap)
	assert.Equal(t, cap, free)
}

func TestLedgerReserveFailsWhenInsufficient(t *testing.T) {
	l := Mk_ledger()
	cap := Capacity{Cpu: 1, Ram: 256, Disk: 5}
	need := Capacity{Cpu: 2, Ram: 512, Disk: 10}

	assert.False(t, l.Check(cap, need))
	assert.False(t, l.Reserve(cap, need))
}

func TestLedgerNeverGoesNegative(t *testing.T) {
	l := Mk_ledger()
	cap := Capacity{Cpu: 4, Ram: 1024, Disk: 20}
	need := Capacity{Cpu: 3, Ram: 800, Disk: 15}

	assert.True(t, l.Reserve(cap, need))
	assert.False(t, l.Reserve(cap, need)) // second reservation would go negative

	free := l.Snapshot(cap)
	assert.GreaterOrEqual(t, free.Cpu, 0)
	assert.GreaterOrEqual(t, free.Ram, 0.0)
	assert.GreaterOrEqual(t, free.Disk, 0.0)
}

func TestLedgerConcurrentReserveIsSerialised(t *testing.T) {
	l := Mk_ledger()
	cap := Capacity{Cpu: 10, Ram: 1000, Disk: 1000}
	need := Capacity{Cpu: 1, Ram: 100, Disk: 100}

	var wg sync.WaitGroup
	ok := make([]bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok[i] = l.Reserve(cap, need)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, v := range ok {
		if v {
			succeeded++
		}
	}
	assert.Equal(t, 10, succeeded) // exactly cap.Cpu / need.Cpu can fit
}
