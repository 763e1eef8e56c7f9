package args

// Adapter makes a parser function into flag.Value.
//
//	policy := args.Parser(recurring.ParsePolicy)
//	flag.Var(policy, "policy", "...")
type Adapter[T interface{ String() string }] struct {
	value  T
	parser func(string) (T, error)
	isSet  bool
}

func (i *Adapter[T]) String() string {
	if i == nil || !i.isSet {
		return ""
	}
	return i.value.String()
}

func (i *Adapter[T]) Set(s string) error {
	v, err := i.parser(s)
	if err != nil {
		return err
	}
	i.isSet = true
	i.value = v
	return nil
}

// Value returns the parsed value, or default value if it is not set.
func (i *Adapter[T]) Value() T {
	return i.value
}

func (i *Adapter[T]) IsSet() bool {
	return i.isSet
}

// Parser creates an Adapter without default value.
func Parser[T interface{ String() string }](parser func(string) (T, error)) *Adapter[T] {
	return &Adapter[T]{parser: parser}
}

// ParserWithDefault creates an Adapter which has value d until it is Set.
func ParserWithDefault[T interface{ String() string }](parser func(string) (T, error), d T) *Adapter[T] {
	return &Adapter[T]{parser: parser, value: d}
}
