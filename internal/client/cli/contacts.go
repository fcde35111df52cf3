package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/dmitrijs2005/contactbook/internal/client/api"
)

// promptContact collects the fields for a contact create or update.
// Optional fields may be left empty.
func (a *App) promptContact() (*api.ContactInput, error) {
	firstName, err := getSimpleText(a.reader, "First name", os.Stdout)
	if err != nil {
		return nil, err
	}
	lastName, err := getSimpleText(a.reader, "Last name", os.Stdout)
	if err != nil {
		return nil, err
	}
	email, err := getSimpleText(a.reader, "Email", os.Stdout)
	if err != nil {
		return nil, err
	}
	phone, err := getSimpleText(a.reader, "Phone (optional)", os.Stdout)
	if err != nil {
		return nil, err
	}
	birthday, err := getSimpleText(a.reader, "Birthday YYYY-MM-DD (optional)", os.Stdout)
	if err != nil {
		return nil, err
	}
	extraInfo, err := getMultiline(a.reader, "Notes (optional)", os.Stdout)
	if err != nil {
		return nil, err
	}

	return &api.ContactInput{
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Phone:     phone,
		Birthday:  birthday,
		ExtraInfo: extraInfo,
	}, nil
}

// promptContactID asks the user for a numeric contact id.
func (a *App) promptContactID() (int64, error) {
	text, err := getSimpleText(a.reader, "Contact id", os.Stdout)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		printlnFn("Contact id must be a number")
		return 0, err
	}
	return id, nil
}

func formatContact(c *api.Contact) string {
	s := fmt.Sprintf("#%d %s %s <%s>", c.ID, c.FirstName, c.LastName, c.Email)
	if c.Phone != "" {
		s += " " + c.Phone
	}
	return s
}

// Add prompts for contact fields and creates the contact.
func (a *App) Add(ctx context.Context) error {
	in, err := a.promptContact()
	if err != nil {
		return err
	}

	contact, err := a.client.CreateContact(ctx, in)
	if err != nil {
		log.Println(err.Error())
		return err
	}

	printlnFn("Created " + formatContact(contact))
	return nil
}

// List prints all contacts in the user's address book.
func (a *App) List(ctx context.Context) error {
	contacts, err := a.client.ListContacts(ctx, api.ListFilter{})
	if err != nil {
		log.Println(err.Error())
		return err
	}

	if len(contacts) == 0 {
		printlnFn("No contacts yet")
		return nil
	}
	for _, c := range contacts {
		printlnFn(formatContact(&c))
	}
	return nil
}

// Show prompts for an id and prints the full contact record.
func (a *App) Show(ctx context.Context) error {
	id, err := a.promptContactID()
	if err != nil {
		return err
	}

	contact, err := a.client.GetContact(ctx, id)
	if err != nil {
		log.Println(err.Error())
		return err
	}

	printlnFn(formatContact(contact))
	if contact.Birthday != "" {
		printlnFn("birthday: " + contact.Birthday)
	}
	if contact.ExtraInfo != "" {
		printlnFn("notes: " + contact.ExtraInfo)
	}
	return nil
}

// Update prompts for an id and replacement fields and updates the contact.
func (a *App) Update(ctx context.Context) error {
	id, err := a.promptContactID()
	if err != nil {
		return err
	}

	in, err := a.promptContact()
	if err != nil {
		return err
	}

	contact, err := a.client.UpdateContact(ctx, id, in)
	if err != nil {
		log.Println(err.Error())
		return err
	}

	printlnFn("Updated " + formatContact(contact))
	return nil
}

// Delete prompts for an id and removes the contact.
func (a *App) Delete(ctx context.Context) error {
	id, err := a.promptContactID()
	if err != nil {
		return err
	}

	if err := a.client.DeleteContact(ctx, id); err != nil {
		log.Println(err.Error())
		return err
	}

	printlnFn("Deleted")
	return nil
}

// Birthdays prints contacts with a birthday in the next seven days.
func (a *App) Birthdays(ctx context.Context) error {
	contacts, err := a.client.UpcomingBirthdays(ctx)
	if err != nil {
		log.Println(err.Error())
		return err
	}

	if len(contacts) == 0 {
		printlnFn("No upcoming birthdays")
		return nil
	}
	for _, c := range contacts {
		printlnFn(formatContact(&c) + " birthday: " + c.Birthday)
	}
	return nil
}
