package store

import (
	"github.com/example/bookstore-orders/internal/domain/inventory"
	"github.com/example/bookstore-orders/internal/domain/user"
	"github.com/shopspring/decimal"
)

// Demo users. Keep in sync with migrations/002_seed.sql.
var (
	SeedAdmin    = user.User{ID: "3f8c4f06-0f6e-51c9-843f-756b944f3694", Name: "Admin User", Email: "admin@bookstore.com", Role: user.RoleAdmin}
	SeedCustomer = user.User{ID: "dee01e54-8cfb-56df-86cb-fba2cc833b0b", Name: "John Doe", Email: "customer@bookstore.com", Role: user.RoleCustomer}
)

func coverURL(isbn string) string {
	return "https://covers.openlibrary.org/b/isbn/" + isbn + "-L.jpg"
}

// SeedBooks returns the demo catalog with its starting stock.
func SeedBooks() []inventory.Item {
	return []inventory.Item{
		{ID: "518b2b48-ed1a-5e03-b23a-46ea93278fcd", Title: "The Great Gatsby", Author: "F. Scott Fitzgerald", ImageURL: coverURL("9780743273565"), Price: decimal.RequireFromString("12.99"), Quantity: 50},
		{ID: "663ac906-775f-508d-8222-d790ede65ff7", Title: "To Kill a Mockingbird", Author: "Harper Lee", ImageURL: coverURL("9780061120084"), Price: decimal.RequireFromString("14.99"), Quantity: 35},
		{ID: "f81bf24e-600f-5074-b738-2a0d92b148e9", Title: "1984", Author: "George Orwell", ImageURL: coverURL("9780452284234"), Price: decimal.RequireFromString("11.99"), Quantity: 60},
		{ID: "17afe868-d8af-573a-9740-9c38b1cb78ae", Title: "Harry Potter and the Sorcerer's Stone", Author: "J.K. Rowling", ImageURL: coverURL("9780590353403"), Price: decimal.RequireFromString("19.99"), Quantity: 80},
		{ID: "f90629fd-b5cb-522b-97b9-bfffbeb66726", Title: "The Hobbit", Author: "J.R.R. Tolkien", ImageURL: coverURL("9780618002214"), Price: decimal.RequireFromString("16.99"), Quantity: 45},
		{ID: "f7425a9c-8adb-5492-8603-4ef613712694", Title: "The Da Vinci Code", Author: "Dan Brown", ImageURL: coverURL("9780385504201"), Price: decimal.RequireFromString("15.99"), Quantity: 30},
		{ID: "e6ab065a-77d3-57ac-85dd-80a50e8f5a1f", Title: "Sapiens: A Brief History of Humankind", Author: "Yuval Noah Harari", ImageURL: coverURL("9780062316097"), Price: decimal.RequireFromString("18.99"), Quantity: 40},
		{ID: "4f440ec9-a5d9-5d22-80f2-8f1efcc8409a", Title: "Atomic Habits", Author: "James Clear", ImageURL: coverURL("9780735211292"), Price: decimal.RequireFromString("17.99"), Quantity: 55},
		{ID: "0f1b06a7-38c5-5ead-b981-1bb2232ff418", Title: "The Alchemist", Author: "Paulo Coelho", ImageURL: coverURL("9780062315007"), Price: decimal.RequireFromString("13.99"), Quantity: 70},
		{ID: "75b1bc17-8f86-52c0-b970-a82292fecbf9", Title: "Clean Code", Author: "Robert C. Martin", ImageURL: coverURL("9780132350884"), Price: decimal.RequireFromString("39.99"), Quantity: 25},
		{ID: "534edca9-5bb4-5ccc-b26d-a84f7647a9a2", Title: "The Lean Startup", Author: "Eric Ries", ImageURL: coverURL("9780307887894"), Price: decimal.RequireFromString("22.99"), Quantity: 20},
		{ID: "70083e67-816c-5b49-8f68-4ce89b0f549d", Title: "Dune", Author: "Frank Herbert", ImageURL: coverURL("9780441172719"), Price: decimal.RequireFromString("16.99"), Quantity: 38},
	}
}

func SeedUsers() []user.User {
	return []user.User{SeedAdmin, SeedCustomer}
}
