package configutil

// SetDefault abstracts registering configuration defaults so packages
// need not depend on Viper directly.
type SetDefault interface {
	SetDefault(key string, value any)
}

// SetDefaultFunc implements SetDefault.
type SetDefaultFunc func(key string, value any)

func (f SetDefaultFunc) SetDefault(key string, value any) {
	if f == nil {
		return
	}
	f(key, value)
}

// Prefixed returns a SetDefault that prepends "prefix." to every key,
// for registering the defaults of a config sub-section.
func Prefixed(i SetDefault, prefix string) SetDefault {
	return SetDefaultFunc(func(key string, value any) {
		i.SetDefault(prefix+"."+key, value)
	})
}
