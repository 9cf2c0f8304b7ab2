package trackings

import "github.com/moby/locker"

// keyLock — мьютекс на каждый deliveryId; locker сам удаляет ключ, когда его никто не держит.
type keyLock struct {
	l *locker.Locker
}

func newKeyLock() *keyLock {
	return &keyLock{l: locker.New()}
}

// Lock блокирует key и возвращает функцию разблокировки.
func (k *keyLock) Lock(key string) func() {
	k.l.Lock(key)
	return func() { _ = k.l.Unlock(key) }
}
