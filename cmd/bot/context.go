package main

import (
	"fmt"

	"github.com/samber/do"
	tele "gopkg.in/telebot.v3"
)

func getContextContainer(context tele.Context) (*do.Injector, error) {
	contextValue := context.Get(contextContainer)
	if contextValue == nil {
		return nil, fmt.Errorf("container not found")
	}

	result, ok := contextValue.(*do.Injector)
	if !ok {
		return nil, fmt.Errorf("container not valid")
	}

	return result, nil
}

func invokeService[T any](c tele.Context) (T, error) {
	var zero T
	container, err := getContextContainer(c)
	if err != nil {
		return zero, err
	}
	return do.Invoke[T](container)
}
