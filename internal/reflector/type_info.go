// Package reflector derives cached, human-readable names for Go types.
// Names are used as message-type labels in logs and metrics; dispatch never
// depends on them.
package reflector

import (
	"reflect"
	"sync"
)

// maxCacheSize bounds the type cache. The number of message types in a
// program is small, so the limit is rarely hit; when it is, the cache is reset.
const maxCacheSize = 1024

var (
	muCache sync.RWMutex
	cache   = make(map[reflect.Type]TypeInfo)
)

// TypeInfo holds naming metadata about a type.
type TypeInfo struct {
	Name  string       // "pkg/path.TypeName", or the type literal for unnamed types
	Short string       // "pkg.TypeName" as printed by reflect
	Type  reflect.Type // pointer-unwrapped type
}

// TypeInfoOf returns TypeInfo for the dynamic type of x.
func TypeInfoOf(x any) TypeInfo {
	return TypeInfoForType(reflect.TypeOf(x))
}

// TypeInfoFor returns TypeInfo for type parameter T.
func TypeInfoFor[T any]() TypeInfo {
	return TypeInfoForType(reflect.TypeFor[T]())
}

// TypeInfoForType returns TypeInfo for t. Pointer types are described by
// their element type. Safe for concurrent use.
func TypeInfoForType(t reflect.Type) TypeInfo {
	if t == nil {
		return TypeInfo{}
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	muCache.RLock()
	ti, ok := cache[t]
	muCache.RUnlock()
	if ok {
		return ti
	}

	ti = TypeInfo{Type: t, Short: t.String()}
	switch {
	case t.Name() == "":
		ti.Name = t.String()
	case t.PkgPath() == "":
		// predeclared
		ti.Name = t.Name()
	default:
		ti.Name = t.PkgPath() + "." + t.Name()
	}

	muCache.Lock()
	if existing, ok := cache[t]; ok {
		muCache.Unlock()
		return existing
	}
	if len(cache) >= maxCacheSize {
		cache = make(map[reflect.Type]TypeInfo)
	}
	cache[t] = ti
	muCache.Unlock()

	return ti
}
