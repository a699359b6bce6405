package flagext

import (
	"github.com/c2h5oh/datasize"
)

// ByteSize is a flag parsing compatibility type for constructing human friendly sizes.
// It implements flag.Value & flag.Getter.
type ByteSize uint64

func (bs ByteSize) String() string {
	return datasize.ByteSize(bs).String()
}

func (bs *ByteSize) Set(s string) error {
	var v datasize.ByteSize
	if err := v.UnmarshalText([]byte(s)); err != nil {
		return err
	}
	*bs = ByteSize(v)
	return nil
}

func (bs ByteSize) Get() interface{} {
	return bs.Val()
}

func (bs ByteSize) Val() int {
	return int(bs)
}

// HumanReadable renders the size with a fractional unit, e.g. "1.5 MB".
func (bs ByteSize) HumanReadable() string {
	return datasize.ByteSize(bs).HumanReadable()
}

// UnmarshalYAML the Unmarshaler interface of the yaml pkg.
func (bs *ByteSize) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var str string
	err := unmarshal(&str)
	if err != nil {
		return err
	}

	return bs.Set(str)
}

// MarshalYAML implements yaml.Marshaller.
func (bs ByteSize) MarshalYAML() (interface{}, error) {
	return bs.String(), nil
}
