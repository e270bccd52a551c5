package encoding

import "math/big"

// Base62Alphabet is the alphabet used for Base62 encoding.
const Base62Alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

var base62Radix = big.NewInt(int64(len(Base62Alphabet)))

var base62Index = func() map[byte]int64 {
	m := make(map[byte]int64, len(Base62Alphabet))
	for i := 0; i < len(Base62Alphabet); i++ {
		m[Base62Alphabet[i]] = int64(i)
	}
	return m
}()

// EncodeBase62 performs Base62 encoding of value, treating it as a big-endian
// unsigned integer. Leading zero bytes in value are preserved as leading '0'
// characters in the output so that the encoding remains unambiguous to
// decode.
func EncodeBase62(value []byte) string {
	leadingZeros := 0
	for leadingZeros < len(value) && value[leadingZeros] == 0 {
		leadingZeros++
	}

	number := new(big.Int).SetBytes(value)

	var digits []byte
	zero := big.NewInt(0)
	mod := new(big.Int)
	for number.Cmp(zero) > 0 {
		number.DivMod(number, base62Radix, mod)
		digits = append(digits, Base62Alphabet[mod.Int64()])
	}

	// Digits were accumulated least-significant first; reverse them.
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}

	result := make([]byte, 0, leadingZeros+len(digits))
	for i := 0; i < leadingZeros; i++ {
		result = append(result, Base62Alphabet[0])
	}
	result = append(result, digits...)

	return string(result)
}

// DecodeBase62 performs Base62 decoding of a string produced by EncodeBase62.
func DecodeBase62(value string) ([]byte, error) {
	leadingZeros := 0
	for leadingZeros < len(value) && value[leadingZeros] == Base62Alphabet[0] {
		leadingZeros++
	}

	number := big.NewInt(0)
	for i := 0; i < len(value); i++ {
		digit, ok := base62Index[value[i]]
		if !ok {
			return nil, errInvalidBase62Character(value[i])
		}
		number.Mul(number, base62Radix)
		number.Add(number, big.NewInt(digit))
	}

	decoded := number.Bytes()
	result := make([]byte, leadingZeros+len(decoded))
	copy(result[leadingZeros:], decoded)

	return result, nil
}

// errInvalidBase62Character is returned by DecodeBase62 when it encounters a
// byte outside Base62Alphabet.
type errInvalidBase62Character byte

func (e errInvalidBase62Character) Error() string {
	return "invalid base62 character: " + string(rune(e))
}
