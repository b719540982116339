package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

var ErrorInvalidPhoneNumber = errors.New("invalid phone number")

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
